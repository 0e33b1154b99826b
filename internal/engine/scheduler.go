// Package engine composes the mode registry, trigger evaluation, arbitration,
// cooldowns, memory, and tick scheduling into the runtime controller.
package engine

import (
	"context"
	"sync"
	"time"
)

// Activation represents one mode's scheduled execution cycle. Its context is
// cancelled when the mode is deactivated; work holding a stale Gen must
// discard its result instead of applying it.
type Activation struct {
	C   <-chan time.Time
	Ctx context.Context
	Gen uint64
}

// TickScheduler drives the per-mode execution cadence. Activating a mode
// cancels the previous mode's cycle before the new one starts: no overlap,
// and no queued backlog carried across the switch.
type TickScheduler struct {
	mu     sync.Mutex
	ticker *time.Ticker
	cancel context.CancelFunc
	gen    uint64
}

// NewTickScheduler creates an idle scheduler.
func NewTickScheduler() *TickScheduler {
	return &TickScheduler{}
}

// Activate starts a fresh periodic cycle at the given interval, cancelling
// any previous activation. A new ticker (and channel) is created each time so
// pending ticks of the outgoing mode are never delivered to the incoming one.
func (s *TickScheduler) Activate(parent context.Context, interval time.Duration) Activation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}

	if interval <= 0 {
		interval = time.Second
	}
	s.ticker = time.NewTicker(interval)
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.gen++

	return Activation{C: s.ticker.C, Ctx: ctx, Gen: s.gen}
}

// Generation returns the current activation generation.
func (s *TickScheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Stop cancels the current activation and halts ticking.
func (s *TickScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}
