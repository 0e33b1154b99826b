// Package memory persists per-mode interaction context across mode switches.
package memory

import (
	"time"

	"github.com/google/uuid"
)

// Interaction is one saved exchange from a mode's action/LLM cycle.
type Interaction struct {
	ID      string    `json:"id"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Ts      time.Time `json:"ts"`
}

// NewInteraction stamps an interaction with a fresh ID and timestamp.
func NewInteraction(role, content string) Interaction {
	return Interaction{
		ID:      uuid.New().String(),
		Role:    role,
		Content: content,
		Ts:      time.Now(),
	}
}

// Record is one mode's saved context snapshot. Written on exit from the
// mode, overwritten on each subsequent exit, read back on re-entry.
type Record struct {
	ID           string        `json:"id"`
	Mode         string        `json:"mode"`
	Context      string        `json:"context,omitempty"` // opaque prompt/context snapshot
	Interactions []Interaction `json:"-"`
	SavedAt      time.Time     `json:"saved_at"`
	ExitCount    int           `json:"exit_count"`
}

// Store is the persistence interface for mode memory.
type Store interface {
	// Save checkpoints a mode's record, replacing any prior one.
	Save(rec *Record) error
	// Load returns a mode's last saved record, or (nil, nil) if none exists.
	Load(modeName string) (*Record, error)
	// Modes lists the mode names with saved records.
	Modes() ([]string, error)
}

// NopStore discards everything; used when mode_memory_enabled is false, so
// re-entering a mode always starts with an empty context.
type NopStore struct{}

func (NopStore) Save(*Record) error           { return nil }
func (NopStore) Load(string) (*Record, error) { return nil, nil }
func (NopStore) Modes() ([]string, error)     { return nil, nil }
