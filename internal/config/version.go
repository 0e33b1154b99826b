package config

import (
	"fmt"
	"strconv"
	"strings"
)

// SupportedConfigMajor is the config schema major version this runtime understands.
const SupportedConfigMajor = 1

// VersionIncompatibleError reports a config whose schema version this runtime
// does not recognize. The engine refuses to start rather than applying
// partial semantics.
type VersionIncompatibleError struct {
	ConfigVersion string
	ConfigName    string
}

func (e *VersionIncompatibleError) Error() string {
	return fmt.Sprintf(
		"config %q declares version %s but this runtime supports v%d.x.x; upgrade the runtime or pin the config to a supported schema",
		e.ConfigName, e.ConfigVersion, SupportedConfigMajor,
	)
}

// verifyVersion checks the config version format and schema compatibility.
// The expected format is vMAJOR.MINOR.PATCH, e.g. "v1.0.2".
func verifyVersion(version, configName string) error {
	if version == "" {
		return &ValidationError{Field: "version", Reason: "missing required version field"}
	}

	trimmed := strings.TrimPrefix(version, "v")
	parts := strings.Split(trimmed, ".")
	if trimmed == version || len(parts) != 3 {
		return &ValidationError{
			Field:  "version",
			Reason: fmt.Sprintf("invalid version format %q, expected vMAJOR.MINOR.PATCH", version),
		}
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return &ValidationError{
				Field:  "version",
				Reason: fmt.Sprintf("invalid version format %q, expected vMAJOR.MINOR.PATCH", version),
			}
		}
	}

	major, _ := strconv.Atoi(parts[0])
	if major != SupportedConfigMajor {
		return &VersionIncompatibleError{ConfigVersion: version, ConfigName: configName}
	}
	return nil
}
