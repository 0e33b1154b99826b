// Package storage persists the engine's transition history and event stream.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Transition is one applied mode change, as recorded in the history database.
type Transition struct {
	Seq       int64     `json:"seq"`
	At        time.Time `json:"at"`
	FromMode  string    `json:"from_mode"`
	ToMode    string    `json:"to_mode"`
	RuleIndex int       `json:"rule_index"` // -1 for manual switches and initial activation
	Trigger   string    `json:"trigger,omitempty"`
	Manual    bool      `json:"manual"`
}

// History is a sqlite-backed audit log of applied transitions.
type History struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the transition history database.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// The engine is the single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	at         TEXT    NOT NULL,
	from_mode  TEXT    NOT NULL,
	to_mode    TEXT    NOT NULL,
	rule_index INTEGER NOT NULL,
	trigger_text TEXT  NOT NULL DEFAULT '',
	manual     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_transitions_at ON transitions(at);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &History{db: db}, nil
}

// Record inserts one applied transition.
func (h *History) Record(t Transition) error {
	_, err := h.db.Exec(
		`INSERT INTO transitions (at, from_mode, to_mode, rule_index, trigger_text, manual) VALUES (?, ?, ?, ?, ?, ?)`,
		t.At.UTC().Format(time.RFC3339Nano), t.FromMode, t.ToMode, t.RuleIndex, t.Trigger, boolToInt(t.Manual),
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// Recent returns up to limit transitions, newest first.
func (h *History) Recent(limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.Query(
		`SELECT seq, at, from_mode, to_mode, rule_index, trigger_text, manual FROM transitions ORDER BY seq DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var at string
		var manual int
		if err := rows.Scan(&t.Seq, &at, &t.FromMode, &t.ToMode, &t.RuleIndex, &t.Trigger, &manual); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.At, _ = time.Parse(time.RFC3339Nano, at)
		t.Manual = manual != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountByMode returns how many times each mode has been entered.
func (h *History) CountByMode() (map[string]int, error) {
	rows, err := h.db.Query(`SELECT to_mode, COUNT(*) FROM transitions GROUP BY to_mode`)
	if err != nil {
		return nil, fmt.Errorf("count transitions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var mode string
		var n int
		if err := rows.Scan(&mode, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[mode] = n
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
