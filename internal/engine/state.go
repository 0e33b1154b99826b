package engine

import (
	"time"

	"github.com/kborowski/pivot/internal/memory"
)

// State is an immutable snapshot of the runtime. The controller replaces the
// whole value on every transition; readers always see a consistent pair of
// mode and entry time.
type State struct {
	Mode       string
	EnteredAt  time.Time
	Generation uint64
}

// ModeContext is what a cycle runner receives for one activation: the active
// mode's identity, its prompt base, and any memory restored on entry.
type ModeContext struct {
	Mode        string
	DisplayName string
	PromptBase  string
	Governance  string // system-wide governance text, identical in every mode
	Hertz       float64
	EnteredAt   time.Time
	Generation  uint64
	Restored    *memory.Record
}
