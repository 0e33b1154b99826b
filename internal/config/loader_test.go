package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON5(t *testing.T) {
	os.Setenv("PIVOT_TEST_PROMPT", "be helpful")
	defer os.Unsetenv("PIVOT_TEST_PROMPT")

	path := writeConfig(t, "robot.json5", `{
		// multi-mode config with comments and trailing commas
		"version": "v1.0.2",
		"name": "robot",
		"default_mode": "welcome",
		"allow_manual_switching": true,
		"mode_memory_enabled": true,
		"modes": {
			"welcome": {
				"display_name": "Welcome",
				"system_prompt_base": "${{ .Env.PIVOT_TEST_PROMPT }}",
				"hertz": 0.5,
			},
			"conversation": {
				"description": "free chat",
				"save_interactions": true,
			},
		},
		"transition_rules": [
			{
				"from_mode": "welcome",
				"to_mode": "conversation",
				"transition_type": "input_triggered",
				"trigger_keywords": ["chat", "talk"],
				"priority": 2,
				"cooldown_seconds": 3.0,
			},
		],
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DefaultMode != "welcome" {
		t.Errorf("default mode = %q, want welcome", cfg.DefaultMode)
	}
	if !cfg.AllowManualSwitch || !cfg.ModeMemoryEnabled {
		t.Error("expected manual switching and mode memory enabled")
	}

	welcome := cfg.Modes["welcome"]
	if welcome.Name != "welcome" {
		t.Errorf("mode name not populated from key: %q", welcome.Name)
	}
	if welcome.SystemPromptBase != "be helpful" {
		t.Errorf("env template not expanded: %q", welcome.SystemPromptBase)
	}
	if welcome.Hertz != 0.5 {
		t.Errorf("hertz = %v, want 0.5", welcome.Hertz)
	}

	conv := cfg.Modes["conversation"]
	if conv.Hertz != 1.0 {
		t.Errorf("default hertz = %v, want 1.0", conv.Hertz)
	}
	if conv.DisplayName != "conversation" {
		t.Errorf("default display name = %q", conv.DisplayName)
	}

	if len(cfg.TransitionRules) != 1 {
		t.Fatalf("rules = %d, want 1", len(cfg.TransitionRules))
	}
	rule := cfg.TransitionRules[0]
	if rule.TransitionType != TransitionInputTriggered || rule.Priority != 2 || rule.CooldownSeconds != 3.0 {
		t.Errorf("rule not parsed: %+v", rule)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "robot.yaml", `
version: v1.0.0
default_mode: idle
modes:
  idle:
    description: waiting
  active:
    hertz: 2
transition_rules:
  - from_mode: "*"
    to_mode: active
    transition_type: input_triggered
    trigger_keywords: [go]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Modes) != 2 {
		t.Fatalf("modes = %d, want 2", len(cfg.Modes))
	}
	if cfg.Modes["active"].Hertz != 2 {
		t.Errorf("hertz = %v, want 2", cfg.Modes["active"].Hertz)
	}
	if cfg.TransitionRules[0].FromMode != Wildcard {
		t.Errorf("from_mode = %q, want wildcard", cfg.TransitionRules[0].FromMode)
	}
	if cfg.TransitionRules[0].Priority != 1 {
		t.Errorf("default priority = %d, want 1", cfg.TransitionRules[0].Priority)
	}
}

func TestLoadInvalidVersionFormat(t *testing.T) {
	for _, version := range []string{"invalid_version", "1.0.2", "v1.0", ""} {
		path := writeConfig(t, "bad.json5", `{
			"version": "`+version+`",
			"default_mode": "a",
			"modes": {"a": {}},
		}`)

		_, err := Load(path)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("version %q: got %v, want ValidationError", version, err)
		}
	}
}

func TestLoadIncompatibleVersion(t *testing.T) {
	path := writeConfig(t, "future.json5", `{
		"version": "v2.0.0",
		"default_mode": "a",
		"modes": {"a": {}},
	}`)

	_, err := Load(path)
	var verr *VersionIncompatibleError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want VersionIncompatibleError", err)
	}
	if verr.ConfigVersion != "v2.0.0" {
		t.Errorf("reported version = %q", verr.ConfigVersion)
	}
}

func TestLoadSingleModeConversion(t *testing.T) {
	path := writeConfig(t, "legacy.json5", `{
		"version": "v1.0.1",
		"name": "spot",
		"hertz": 0.8,
		"system_prompt_base": "you are spot",
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultMode != "spot" {
		t.Errorf("default mode = %q, want spot", cfg.DefaultMode)
	}
	if cfg.AllowManualSwitch || cfg.ModeMemoryEnabled {
		t.Error("converted configs must disable manual switching and memory")
	}
	m, ok := cfg.Modes["spot"]
	if !ok {
		t.Fatalf("converted mode missing, have %v", cfg.ModeNames())
	}
	if m.Hertz != 0.8 || m.SystemPromptBase != "you are spot" {
		t.Errorf("mode fields not carried: %+v", m)
	}
	if len(cfg.TransitionRules) != 0 {
		t.Errorf("converted config must have no rules, got %d", len(cfg.TransitionRules))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json5")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestModeNamesOrdered(t *testing.T) {
	cfg := &Config{Modes: map[string]ModeConfig{"zulu": {}, "alpha": {}, "mike": {}}}
	names := cfg.ModeNames()
	want := []string{"alpha", "mike", "zulu"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}
