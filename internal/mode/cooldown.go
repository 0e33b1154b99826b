package mode

import (
	"sync"
	"time"
)

// CooldownTracker records per-rule last-fired timestamps. Cooldowns are per
// rule object (declaration index), not per (from,to) pair: two rules sharing
// the same pair cool down independently.
//
// Timestamps are expected to come from time.Now(), whose monotonic reading
// makes the elapsed-time comparison immune to wall-clock adjustment.
type CooldownTracker struct {
	mu        sync.Mutex
	lastFired map[int]time.Time
}

// NewCooldownTracker creates an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{lastFired: make(map[int]time.Time)}
}

// Eligible reports whether the rule may fire at now: either it has never
// fired, or at least its cooldown has elapsed since the last firing.
func (t *CooldownTracker) Eligible(r *Rule, now time.Time) bool {
	if r.Cooldown <= 0 {
		return true
	}
	t.mu.Lock()
	last, ok := t.lastFired[r.Index]
	t.mu.Unlock()
	if !ok {
		return true
	}
	return now.Sub(last) >= r.Cooldown
}

// RecordFired stamps the rule's firing time.
func (t *CooldownTracker) RecordFired(r *Rule, now time.Time) {
	t.mu.Lock()
	t.lastFired[r.Index] = now
	t.mu.Unlock()
}

// Snapshot returns an eligibility predicate frozen at now, suitable for one
// arbitration pass.
func (t *CooldownTracker) Snapshot(now time.Time) func(*Rule) bool {
	return func(r *Rule) bool { return t.Eligible(r, now) }
}
