package config

import (
	"os"
	"path/filepath"
)

// PivotPath returns the root directory for pivot data.
// It uses $PIVOT_PATH if set, otherwise defaults to ~/.pivot.
func PivotPath() string {
	if v := os.Getenv("PIVOT_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".pivot")
	}
	return filepath.Join(home, ".pivot")
}

// ConfigPath returns the default path to the mode-system config file.
func ConfigPath() string {
	return filepath.Join(PivotPath(), "config.json5")
}

// DotenvPath returns the path to the pivot .env file.
func DotenvPath() string {
	return filepath.Join(PivotPath(), ".env")
}

// MemoryPath returns the directory holding per-mode memory records.
func MemoryPath() string {
	return filepath.Join(PivotPath(), "memory")
}

// HistoryPath returns the path of the sqlite transition history database.
func HistoryPath() string {
	return filepath.Join(PivotPath(), "transitions.db")
}

// EventLogPath returns the directory for JSONL event logs.
func EventLogPath() string {
	return filepath.Join(PivotPath(), "events")
}

// HeartbeatPath returns the path of the daemon liveness file.
func HeartbeatPath() string {
	return filepath.Join(PivotPath(), "heartbeat.json")
}
