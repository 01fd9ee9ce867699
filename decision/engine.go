// Package decision turns observations into committed cap targets, with
// dwell-time hysteresis so borderline samples near a schedule boundary do
// not flap the limits.
package decision

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/qbthrottle/sampler"
	"github.com/s0up4200/qbthrottle/schedule"
)

// State is the engine's memory between ticks. It lives for the process
// lifetime only and is owned exclusively by the engine.
type State struct {
	Targets    schedule.Targets
	Rule       string
	LastChange time.Time
}

// Decision is the outcome of one tick.
type Decision struct {
	Targets schedule.Targets
	Rule    string
	// Changed is true when the committed targets differ from the
	// previous tick's.
	Changed bool
}

// Engine applies the schedule to observations, holding committed targets
// for at least the dwell duration before a non-emergency change.
type Engine struct {
	dwell  time.Duration
	logger zerolog.Logger
	state  *State
}

// NewEngine creates a decision engine. A zero dwell disables hysteresis.
func NewEngine(dwell time.Duration, logger zerolog.Logger) *Engine {
	return &Engine{
		dwell:  dwell,
		logger: logger,
	}
}

// State returns a copy of the current state, or nil before the first tick.
func (e *Engine) State() *State {
	if e.state == nil {
		return nil
	}
	s := *e.state
	return &s
}

// Decide maps an observation to the targets that should apply now. The
// observation's timestamp is the engine's clock, which keeps decisions
// reproducible.
//
// A change of targets is committed when the previous change is at least
// the dwell duration old, or when an emergency rule tightens the caps.
// Emergency tightening bypasses the dwell window; loosening never does.
func (e *Engine) Decide(profile *schedule.Profile, obs sampler.Observation) Decision {
	rule := profile.Match(obs)

	// First tick: apply immediately, there is nothing to hold.
	if e.state == nil {
		e.state = &State{Targets: rule.Targets, Rule: rule.Name, LastChange: obs.At}
		return Decision{Targets: rule.Targets, Rule: rule.Name, Changed: true}
	}

	if rule.Targets.Equal(e.state.Targets) {
		return Decision{Targets: e.state.Targets, Rule: e.state.Rule}
	}

	held := obs.At.Sub(e.state.LastChange)
	if held < e.dwell && !(rule.Emergency && rule.Targets.TighterThan(e.state.Targets)) {
		e.logger.Debug().
			Str("rule", rule.Name).
			Str("held_rule", e.state.Rule).
			Dur("held_for", held).
			Dur("dwell", e.dwell).
			Msg("Holding previous targets inside dwell window")
		return Decision{Targets: e.state.Targets, Rule: e.state.Rule}
	}

	e.logger.Info().
		Str("rule", rule.Name).
		Str("previous_rule", e.state.Rule).
		Str("targets", rule.Targets.String()).
		Msg("Committing new cap targets")

	e.state = &State{Targets: rule.Targets, Rule: rule.Name, LastChange: obs.At}
	return Decision{Targets: rule.Targets, Rule: rule.Name, Changed: true}
}
