// Package throttle runs the control loop: on every tick it samples the
// environment, decides the cap targets that should apply, and reconciles
// the remote client toward them.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/qbthrottle/decision"
	"github.com/s0up4200/qbthrottle/reconcile"
	"github.com/s0up4200/qbthrottle/sampler"
	"github.com/s0up4200/qbthrottle/schedule"
)

// Loop ties sampler, decision engine and reconciler together on a fixed
// tick interval. Ticks run strictly sequentially.
type Loop struct {
	sampler    *sampler.Sampler
	engine     *decision.Engine
	reconciler *reconcile.Reconciler
	interval   time.Duration
	logger     zerolog.Logger

	mu      sync.Mutex
	profile *schedule.Profile

	// pending records that the last reconciliation did not converge
	// (or that none happened yet), forcing a reconcile on the next
	// tick even if the decision itself is unchanged.
	pending bool
}

// New creates a control loop. The profile may later be swapped wholesale
// via SetProfile; the swap takes effect on the next tick.
func New(s *sampler.Sampler, e *decision.Engine, r *reconcile.Reconciler, profile *schedule.Profile, interval time.Duration, logger zerolog.Logger) *Loop {
	return &Loop{
		sampler:    s,
		engine:     e,
		reconciler: r,
		profile:    profile,
		interval:   interval,
		logger:     logger,
		pending:    true,
	}
}

// SetProfile replaces the schedule profile for subsequent ticks.
func (l *Loop) SetProfile(p *schedule.Profile) {
	l.mu.Lock()
	l.profile = p
	l.mu.Unlock()
	l.logger.Info().Int("rules", len(p.Rules())).Msg("Schedule profile reloaded")
}

func (l *Loop) currentProfile() *schedule.Profile {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.profile
}

// Run ticks until ctx is cancelled. The first tick fires immediately.
// Cancellation is cooperative: an in-flight tick finishes its current
// attempt, and no new write starts once shutdown is requested.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().Dur("interval", l.interval).Msg("Control loop started")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("Control loop stopped")
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// RunOnce performs a single sample-decide-reconcile pass, regardless of
// whether the decision changed. Used by the one-shot command.
func (l *Loop) RunOnce(ctx context.Context) error {
	obs := l.sampler.Sample(ctx)
	dec := l.engine.Decide(l.currentProfile(), obs)

	result := l.reconciler.Reconcile(ctx, dec.Targets)
	l.observe(dec, result)

	if result.Outcome == reconcile.Deferred {
		return fmt.Errorf("reconciliation deferred: %w", result.Err)
	}
	return nil
}

// tick runs one loop iteration. A failed tick never stops the loop; a
// deferred outcome is retried on the next tick with a fresh snapshot.
func (l *Loop) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	obs := l.sampler.Sample(ctx)
	dec := l.engine.Decide(l.currentProfile(), obs)

	if !dec.Changed && !l.pending {
		l.logger.Debug().Str("rule", dec.Rule).Msg("Targets unchanged and converged, nothing to do")
		return
	}

	// Shutdown may have been requested while sampling; do not start a
	// new write sequence if so.
	if ctx.Err() != nil {
		return
	}

	result := l.reconciler.Reconcile(ctx, dec.Targets)
	l.observe(dec, result)
}

func (l *Loop) observe(dec decision.Decision, result reconcile.Result) {
	switch result.Outcome {
	case reconcile.Applied:
		l.pending = false
		l.logger.Info().
			Str("rule", dec.Rule).
			Str("targets", dec.Targets.String()).
			Msg("Applied transfer limits")
	case reconcile.AlreadyConverged:
		l.pending = false
		l.logger.Debug().
			Str("rule", dec.Rule).
			Msg("Remote limits already converged")
	case reconcile.Deferred:
		l.pending = true
		l.logger.Warn().
			Err(result.Err).
			Str("rule", dec.Rule).
			Msg("Reconciliation deferred until next tick")
	}
}
