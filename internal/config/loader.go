package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a mode-system config file, expands ${{ .Env.VAR }} templates,
// parses it (JWCC/JSON5-style by default, YAML for .yaml/.yml files),
// converts legacy single-mode configs, verifies the schema version, and
// applies defaults. Semantic validation (dangling mode references and the
// like) happens when the mode registry is built from the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := []byte(expandEnvTemplates(string(data)))
	name := configName(path)

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	default:
		std, err := hujson.Standardize(expanded)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := json.Unmarshal(std, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
	}

	version, _ := raw["version"].(string)
	if err := verifyVersion(version, name); err != nil {
		return nil, err
	}

	raw = ConvertToMultiMode(raw, name)

	cfg, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}

	applyDefaults(cfg)
	return cfg, nil
}

// decode round-trips the raw map through JSON into the typed Config.
// Both YAML and JWCC inputs converge here after normalization.
func decode(raw map[string]any) (*Config, error) {
	data, err := json.Marshal(normalizeKeys(raw))
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeKeys converts yaml.v3's map[any]any values into map[string]any
// so the whole tree is JSON-marshalable.
func normalizeKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeKeys(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeKeys(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalizeKeys(item)
		}
		return val
	default:
		return v
	}
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// configName derives a human-readable config name from the file path.
func configName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
