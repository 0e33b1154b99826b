// Package inputs defines the normalized token stream the engine consumes and
// the registration table for input source types.
package inputs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kborowski/pivot/internal/config"
)

// Token is one normalized text event from an input source, tagged with its
// receipt timestamp. This is all the engine ever sees of speech, vision, or
// any other upstream plugin.
type Token struct {
	Text       string    `json:"text"`
	Source     string    `json:"source,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Valid reports whether the token carries usable text. Malformed tokens are
// dropped by the evaluator without aborting the tick.
func (t Token) Valid() bool {
	return strings.TrimSpace(t.Text) != ""
}

// Source produces normalized tokens for the engine. Implementations bridge
// whatever upstream plugin exists (ASR, VLM, a test script) into Token values.
type Source interface {
	Name() string
	Events() <-chan Token
	Start(ctx context.Context) error
	Close() error
}

// Factory builds a Source from its configuration reference.
type Factory func(ref config.SourceRef) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a source factory under a type string. Later registrations
// replace earlier ones, which lets tests install fakes.
func Register(typeName string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typeName] = f
}

// New builds a Source for a config reference, resolving by type string.
func New(ref config.SourceRef) (Source, error) {
	registryMu.RLock()
	f, ok := registry[ref.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, &config.ValidationError{
			Field:  "agent_inputs",
			Rule:   -1,
			Reason: fmt.Sprintf("unknown input source type %q", ref.Type),
		}
	}
	return f(ref)
}

func init() {
	Register("push", func(ref config.SourceRef) (Source, error) {
		return NewPushSource(sourceName(ref, "push")), nil
	})
	Register("replay", newReplaySource)
}

func sourceName(ref config.SourceRef, fallback string) string {
	if ref.Name != "" {
		return ref.Name
	}
	return fallback
}
