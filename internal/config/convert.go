package config

import "log/slog"

// IsSingleMode reports whether a raw config uses the legacy single-mode
// layout, i.e. it lacks a modes map or a default_mode.
func IsSingleMode(raw map[string]any) bool {
	_, hasModes := raw["modes"]
	_, hasDefault := raw["default_mode"]
	return !hasModes || !hasDefault
}

// ConvertToMultiMode upgrades a legacy single-mode config into the multi-mode
// layout: the whole config becomes one mode named after the config, with
// manual switching and mode memory disabled and no transition rules.
// Multi-mode configs are returned unchanged.
func ConvertToMultiMode(raw map[string]any, name string) map[string]any {
	if !IsSingleMode(raw) {
		return raw
	}

	modeName := name
	if n, ok := raw["name"].(string); ok && n != "" {
		modeName = n
	}
	slog.Info("converting single-mode config", "mode", modeName)

	mode := map[string]any{
		"display_name":       modeName,
		"description":        "converted from single-mode config",
		"system_prompt_base": raw["system_prompt_base"],
	}
	for _, key := range []string{"hertz", "timeout_seconds", "save_interactions", "agent_inputs", "agent_actions"} {
		if v, ok := raw[key]; ok {
			mode[key] = v
		}
	}

	converted := map[string]any{
		"version":                raw["version"],
		"name":                   modeName,
		"default_mode":           modeName,
		"allow_manual_switching": false,
		"mode_memory_enabled":    false,
		"modes":                  map[string]any{modeName: mode},
		"transition_rules":       []any{},
	}
	for _, key := range []string{"system_governance", "system_prompt_examples", "trigger_matching", "gateway", "events"} {
		if v, ok := raw[key]; ok {
			converted[key] = v
		}
	}
	return converted
}
