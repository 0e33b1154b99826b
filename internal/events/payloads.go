package events

import (
	"encoding/json"
	"time"
)

// ModeChangedPayload describes an applied transition. RuleIndex is -1 for
// manual switches and the initial mode activation.
type ModeChangedPayload struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	RuleIndex int       `json:"rule_index"`
	Trigger   string    `json:"trigger,omitempty"`
	Manual    bool      `json:"manual,omitempty"`
	At        time.Time `json:"at"`
}

// TokenPayload mirrors one ingested input token.
type TokenPayload struct {
	Text       string    `json:"text"`
	Source     string    `json:"source,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// TickPayload marks one evaluation pass.
type TickPayload struct {
	Mode      string `json:"mode"`
	BatchSize int    `json:"batch_size"`
}

// BlockedPayload reports a winning-priority candidate excluded by cooldown.
// Informational only: a blocked rule is not an error.
type BlockedPayload struct {
	RuleIndex int    `json:"rule_index"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason"`
}

// NewModeChanged wraps a ModeChangedPayload into a bus event.
func NewModeChanged(p ModeChangedPayload) Event {
	return NewEvent(EventModeChanged, SourceEngine, toMap(p))
}

// NewInputToken wraps a TokenPayload into a bus event.
func NewInputToken(p TokenPayload) Event {
	return NewEvent(EventInputToken, SourceInput, toMap(p))
}

// NewTick wraps a TickPayload into a bus event.
func NewTick(p TickPayload) Event {
	return NewEvent(EventModeTick, SourceEngine, toMap(p))
}

// NewBlocked wraps a BlockedPayload into a bus event.
func NewBlocked(p BlockedPayload) Event {
	return NewEvent(EventTransitionBlocked, SourceEngine, toMap(p))
}

// ModeChangedFrom extracts a typed payload from a mode.changed event.
func ModeChangedFrom(e Event) (ModeChangedPayload, bool) {
	var p ModeChangedPayload
	if e.Type != EventModeChanged {
		return p, false
	}
	return p, fromMap(e.Payload, &p)
}

// toMap converts a typed payload to the bus's generic payload form.
func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

func fromMap(m map[string]any, out any) bool {
	data, err := json.Marshal(m)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}
