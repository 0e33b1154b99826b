package inputs

import (
	"context"
	"fmt"
	"time"

	"github.com/kborowski/pivot/internal/config"
)

// ReplaySource emits a fixed script of tokens at a configurable interval.
// Used for simulation runs and integration tests; configured as
// {type: "replay", config: {tokens: [...], interval_ms: 100}}.
type ReplaySource struct {
	name     string
	script   []string
	interval time.Duration
	ch       chan Token
	cancel   context.CancelFunc
}

func newReplaySource(ref config.SourceRef) (Source, error) {
	raw, _ := ref.Config["tokens"].([]any)
	script := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("replay source %q: tokens must be strings, got %T", ref.Name, v)
		}
		script = append(script, s)
	}

	interval := 100 * time.Millisecond
	if ms, ok := ref.Config["interval_ms"].(float64); ok && ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}

	return &ReplaySource{
		name:     sourceName(ref, "replay"),
		script:   script,
		interval: interval,
		ch:       make(chan Token, len(script)+1),
	}, nil
}

func (r *ReplaySource) Name() string { return r.name }

func (r *ReplaySource) Events() <-chan Token { return r.ch }

// Start begins emitting the script. The channel closes once the script is
// exhausted or the context is cancelled.
func (r *ReplaySource) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	go func() {
		defer close(r.ch)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for _, text := range r.script {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.ch <- Token{Text: text, Source: r.name, ReceivedAt: now}
			}
		}
	}()
	return nil
}

func (r *ReplaySource) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}
