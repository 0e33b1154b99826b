// Package config defines the mode-system configuration surface and its loader.
package config

import "sort"

// TransitionType enumerates how a transition rule is allowed to fire.
type TransitionType string

const (
	// TransitionInputTriggered fires on trigger keyword matches in the input stream.
	TransitionInputTriggered TransitionType = "input_triggered"
	// TransitionTimeBased fires after a dwell timeout or at a cron-scheduled instant.
	TransitionTimeBased TransitionType = "time_based"
	// TransitionManual fires only through an explicit switch request.
	TransitionManual TransitionType = "manual"
	// TransitionContextAware is reserved for relevance-scored transitions
	// decided by an external collaborator; such rules load but never fire
	// from the engine's own evaluation pass.
	TransitionContextAware TransitionType = "context_aware"
)

// Wildcard is the from_mode value that matches any current mode.
const Wildcard = "*"

// Config is the root configuration for a mode-aware agent runtime.
type Config struct {
	Version             string `json:"version" yaml:"version"`
	Name                string `json:"name" yaml:"name"`
	DefaultMode         string `json:"default_mode" yaml:"default_mode"`
	AllowManualSwitch   bool   `json:"allow_manual_switching" yaml:"allow_manual_switching"`
	ModeMemoryEnabled   bool   `json:"mode_memory_enabled" yaml:"mode_memory_enabled"`
	SystemGovernance    string `json:"system_governance,omitempty" yaml:"system_governance,omitempty"`
	SystemPromptExample string `json:"system_prompt_examples,omitempty" yaml:"system_prompt_examples,omitempty"`

	TriggerMatching MatchingConfig        `json:"trigger_matching,omitempty" yaml:"trigger_matching,omitempty"`
	Gateway         GatewayConfig         `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	Events          EventsConfig          `json:"events,omitempty" yaml:"events,omitempty"`
	Modes           map[string]ModeConfig `json:"modes" yaml:"modes"`
	TransitionRules []RuleConfig          `json:"transition_rules" yaml:"transition_rules"`
}

// ModeConfig describes a single named operating mode.
type ModeConfig struct {
	Name             string      `json:"-" yaml:"-"` // populated from the map key
	DisplayName      string      `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Description      string      `json:"description,omitempty" yaml:"description,omitempty"`
	SystemPromptBase string      `json:"system_prompt_base,omitempty" yaml:"system_prompt_base,omitempty"`
	Hertz            float64     `json:"hertz,omitempty" yaml:"hertz,omitempty"`
	TimeoutSeconds   float64     `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	SaveInteractions bool        `json:"save_interactions,omitempty" yaml:"save_interactions,omitempty"`
	AgentInputs      []SourceRef `json:"agent_inputs,omitempty" yaml:"agent_inputs,omitempty"`
	AgentActions     []ActionRef `json:"agent_actions,omitempty" yaml:"agent_actions,omitempty"`
}

// SourceRef names an input source attached to a mode. The engine only routes
// the tokens such a source produces; the plugin implementation lives elsewhere.
type SourceRef struct {
	Type   string         `json:"type" yaml:"type"`
	Name   string         `json:"name,omitempty" yaml:"name,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// ActionRef names an action connector attached to a mode. Opaque to the engine.
type ActionRef struct {
	Type   string         `json:"type" yaml:"type"`
	Name   string         `json:"name,omitempty" yaml:"name,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// RuleConfig declares one transition edge between modes.
type RuleConfig struct {
	FromMode        string         `json:"from_mode" yaml:"from_mode"`
	ToMode          string         `json:"to_mode" yaml:"to_mode"`
	TransitionType  TransitionType `json:"transition_type" yaml:"transition_type"`
	TriggerKeywords []string       `json:"trigger_keywords,omitempty" yaml:"trigger_keywords,omitempty"`
	Priority        int            `json:"priority,omitempty" yaml:"priority,omitempty"`
	CooldownSeconds float64        `json:"cooldown_seconds,omitempty" yaml:"cooldown_seconds,omitempty"`
	TimeoutSeconds  float64        `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	AtSchedule      string         `json:"at_schedule,omitempty" yaml:"at_schedule,omitempty"`
}

// MatchStrategy selects the keyword matching granularity.
type MatchStrategy string

const (
	MatchSubstring MatchStrategy = "substring"
	MatchWord      MatchStrategy = "word"
)

// MatchCombine selects how multiple keywords on one rule combine.
type MatchCombine string

const (
	CombineAny MatchCombine = "any"
	CombineAll MatchCombine = "all"
)

// MatchingConfig tunes trigger keyword matching. Matching is always case-insensitive.
type MatchingConfig struct {
	Strategy MatchStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Combine  MatchCombine  `json:"combine,omitempty" yaml:"combine,omitempty"`
}

// GatewayConfig holds the HTTP gateway settings.
type GatewayConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty"`
}

// ModeNames returns the configured mode names in deterministic (sorted) order.
func (c *Config) ModeNames() []string {
	names := make([]string, 0, len(c.Modes))
	for name := range c.Modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// applyDefaults fills zero-value fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Name == "" {
		cfg.Name = "mode_system"
	}
	if cfg.TriggerMatching.Strategy == "" {
		cfg.TriggerMatching.Strategy = MatchSubstring
	}
	if cfg.TriggerMatching.Combine == "" {
		cfg.TriggerMatching.Combine = CombineAny
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18520
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}

	for name, m := range cfg.Modes {
		m.Name = name
		if m.DisplayName == "" {
			m.DisplayName = name
		}
		if m.Hertz == 0 {
			m.Hertz = 1.0
		}
		cfg.Modes[name] = m
	}

	for i, r := range cfg.TransitionRules {
		if r.Priority == 0 {
			r.Priority = 1
		}
		cfg.TransitionRules[i] = r
	}
}
