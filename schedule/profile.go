// Package schedule holds the throttle policy: an ordered list of rules
// mapping conditions (time-of-day windows, named external states, or
// expression conditions) to transfer cap targets.
package schedule

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/qbthrottle/sampler"
)

// RuleSpec is the configuration form of a rule. A rule needs at least one
// condition; when several are set, all of them must hold for the rule to
// match.
type RuleSpec struct {
	Name        string `mapstructure:"name"`
	Window      string `mapstructure:"window"`
	State       string `mapstructure:"state"`
	When        string `mapstructure:"when"`
	UploadKiB   int64  `mapstructure:"upload_kib"`
	DownloadKiB int64  `mapstructure:"download_kib"`
	Emergency   bool   `mapstructure:"emergency"`
}

// Rule is a compiled schedule entry.
type Rule struct {
	Name      string
	Targets   Targets
	Emergency bool

	window   *Window
	state    string
	when     string
	program  *vm.Program
	fallback bool
}

// Default reports whether this is the profile's fallback rule.
func (r Rule) Default() bool {
	return r.fallback
}

// matches evaluates every condition the rule declares against obs.
func (r Rule) matches(obs sampler.Observation) bool {
	if r.window != nil && !r.window.Contains(obs.At) {
		return false
	}
	if r.state != "" && r.state != obs.Signal {
		return false
	}
	if r.program != nil {
		result, err := expr.Run(r.program, exprEnv(obs))
		if err != nil {
			// A rule whose condition cannot be evaluated does not match.
			return false
		}
		if !result.(bool) {
			return false
		}
	}
	return true
}

// Profile is an immutable, ordered rule set. It is replaced wholesale on
// configuration reload, never mutated.
type Profile struct {
	rules []Rule
	def   Rule
}

// NewProfile compiles rule specs into a profile. Rules keep their declared
// order; the default targets apply when nothing matches.
func NewProfile(specs []RuleSpec, defaultTargets Targets) (*Profile, error) {
	p := &Profile{
		def: Rule{
			Name:     "default",
			Targets:  defaultTargets,
			fallback: true,
		},
	}

	for i, spec := range specs {
		rule, err := compileRule(i, spec)
		if err != nil {
			return nil, err
		}
		p.rules = append(p.rules, rule)
	}

	return p, nil
}

// Match returns the first rule in declared order whose conditions all hold
// for obs, falling back to the default rule. Deterministic: the same
// observation against the same profile always yields the same rule.
func (p *Profile) Match(obs sampler.Observation) Rule {
	for _, rule := range p.rules {
		if rule.matches(obs) {
			return rule
		}
	}
	return p.def
}

// Default returns the profile's fallback rule.
func (p *Profile) Default() Rule {
	return p.def
}

// Rules returns the compiled rules in declared order.
func (p *Profile) Rules() []Rule {
	return p.rules
}

func compileRule(index int, spec RuleSpec) (Rule, error) {
	rule := Rule{
		Name:      spec.Name,
		Targets:   Targets{UploadKiB: spec.UploadKiB, DownloadKiB: spec.DownloadKiB},
		Emergency: spec.Emergency,
		state:     spec.State,
		when:      strings.TrimSpace(spec.When),
	}

	if rule.Name == "" {
		rule.Name = fmt.Sprintf("rule-%d", index+1)
	}
	if rule.Targets.UploadKiB < 0 || rule.Targets.DownloadKiB < 0 {
		return Rule{}, fmt.Errorf("rule %s: caps must not be negative", rule.Name)
	}

	if spec.Window != "" {
		window, err := ParseWindow(spec.Window)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		rule.window = &window
	}

	if rule.when != "" {
		program, err := expr.Compile(rule.when,
			expr.Env(exprEnv(sampler.Observation{})),
			expr.AsBool(),
		)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %s: failed to compile condition %q: %w", rule.Name, rule.when, err)
		}
		rule.program = program
	}

	if rule.window == nil && rule.state == "" && rule.program == nil {
		return Rule{}, fmt.Errorf("rule %s: needs a window, state, or when condition", rule.Name)
	}

	return rule, nil
}

// exprEnv builds the evaluation environment for a when condition.
func exprEnv(obs sampler.Observation) map[string]any {
	return map[string]any{
		"hour":    obs.At.Hour(),
		"minute":  obs.At.Minute(),
		"weekday": obs.At.Weekday().String(),
		"signal":  obs.Signal,
		"active":  obs.Signal != "",
	}
}
