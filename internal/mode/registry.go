package mode

import (
	"fmt"
	"time"

	"github.com/kborowski/pivot/internal/config"
)

// Mode is a validated, immutable operating mode. Created once at load time
// and never destroyed during a run.
type Mode struct {
	Name             string
	DisplayName      string
	Description      string
	SystemPromptBase string
	Hertz            float64
	DwellTimeout     time.Duration // optional mode-level timeout for time-based rules
	SaveInteractions bool
	AgentInputs      []config.SourceRef
	AgentActions     []config.ActionRef
}

// Interval returns the tick period derived from the mode's hertz cadence.
func (m Mode) Interval() time.Duration {
	return time.Duration(float64(time.Second) / m.Hertz)
}

// Registry holds the validated mode set and transition rules of one config.
type Registry struct {
	modes       map[string]Mode
	order       []string
	rules       []Rule
	defaultMode string
}

// NewRegistry validates a loaded config and builds the registry.
// Any dangling mode reference or malformed rule fails construction with a
// ValidationError naming the offender; the engine must not start on it.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	if len(cfg.Modes) == 0 {
		return nil, &config.ValidationError{Field: "modes", Rule: -1, Reason: "at least one mode is required"}
	}

	reg := &Registry{
		modes:       make(map[string]Mode, len(cfg.Modes)),
		order:       cfg.ModeNames(),
		defaultMode: cfg.DefaultMode,
	}

	for _, name := range reg.order {
		mc := cfg.Modes[name]
		if mc.Hertz <= 0 {
			return nil, &config.ValidationError{
				Field:  fmt.Sprintf("modes.%s.hertz", name),
				Rule:   -1,
				Reason: fmt.Sprintf("must be a positive real number, got %v", mc.Hertz),
			}
		}
		m := Mode{
			Name:             name,
			DisplayName:      mc.DisplayName,
			Description:      mc.Description,
			SystemPromptBase: mc.SystemPromptBase,
			Hertz:            mc.Hertz,
			SaveInteractions: mc.SaveInteractions,
			AgentInputs:      mc.AgentInputs,
			AgentActions:     mc.AgentActions,
		}
		if mc.TimeoutSeconds > 0 {
			m.DwellTimeout = secondsToDuration(mc.TimeoutSeconds)
		}
		reg.modes[name] = m
	}

	if cfg.DefaultMode == "" {
		return nil, &config.ValidationError{Field: "default_mode", Rule: -1, Reason: "missing required default_mode"}
	}
	if _, ok := reg.modes[cfg.DefaultMode]; !ok {
		return nil, &config.ValidationError{
			Field:  "default_mode",
			Rule:   -1,
			Reason: fmt.Sprintf("default mode %q is not a configured mode", cfg.DefaultMode),
		}
	}

	reg.rules = make([]Rule, 0, len(cfg.TransitionRules))
	for i, rc := range cfg.TransitionRules {
		rule, err := compileRule(i, rc)
		if err != nil {
			return nil, err
		}
		if _, ok := reg.modes[rule.ToMode]; !ok {
			return nil, config.NewRuleError(i, "to_mode", fmt.Sprintf("references unknown mode %q", rule.ToMode))
		}
		if !rule.Wildcard() {
			if _, ok := reg.modes[rule.FromMode]; !ok {
				return nil, config.NewRuleError(i, "from_mode", fmt.Sprintf("references unknown mode %q (use %q for any)", rule.FromMode, config.Wildcard))
			}
		}
		if rule.Type == config.TransitionTimeBased && rule.DwellTimeout == 0 && rule.AtSchedule == nil {
			if !reg.dwellAvailable(&rule) {
				return nil, config.NewRuleError(i, "timeout_seconds",
					"time-based rules require a positive timeout, an at_schedule, or a from-mode with timeout_seconds")
			}
		}
		reg.rules = append(reg.rules, rule)
	}

	return reg, nil
}

// dwellAvailable reports whether a bare time-based rule can inherit a dwell
// timeout from its from-mode. Wildcard rules qualify when any mode carries
// one; they simply never fire from modes without.
func (r *Registry) dwellAvailable(rule *Rule) bool {
	if rule.Wildcard() {
		for _, m := range r.modes {
			if m.DwellTimeout > 0 {
				return true
			}
		}
		return false
	}
	return r.modes[rule.FromMode].DwellTimeout > 0
}

// Get returns the mode by name, or ErrUnknownMode.
func (r *Registry) Get(name string) (Mode, error) {
	m, ok := r.modes[name]
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return m, nil
}

// Has reports whether a mode is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.modes[name]
	return ok
}

// All returns every registered mode in deterministic order.
func (r *Registry) All() []Mode {
	out := make([]Mode, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.modes[name])
	}
	return out
}

// Rules returns the transition rules in declaration order.
func (r *Registry) Rules() []Rule {
	return r.rules
}

// Default returns the configured default mode.
func (r *Registry) Default() Mode {
	return r.modes[r.defaultMode]
}
