// Package events provides the in-memory event bus the engine publishes on.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var ErrBusClosed = errors.New("event bus is closed")

// EventType represents the type of event.
type EventType string

const (
	// Engine lifecycle
	EventEngineStarted EventType = "engine.started"
	EventEngineStopped EventType = "engine.stopped"

	// Input boundary
	EventInputToken EventType = "input.token"

	// Mode lifecycle
	EventModeTick    EventType = "mode.tick"
	EventModeChanged EventType = "mode.changed"

	// Arbitration outcomes
	EventTransitionBlocked EventType = "transition.blocked"
	EventManualRejected    EventType = "manual.rejected"
)

// EventSource identifies the component that emitted an event.
type EventSource string

const (
	SourceEngine  EventSource = "engine"
	SourceGateway EventSource = "gateway"
	SourceInput   EventSource = "input"
)

// Event is one entry on the bus.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	Payload   map[string]any `json:"payload"`
}

var eventIDCounter uint64

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, source EventSource, payload map[string]any) Event {
	seq := atomic.AddUint64(&eventIDCounter, 1)
	return Event{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixNano(), seq),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Payload:   payload,
	}
}

// Subscriber is a function that receives events.
type Subscriber func(Event)

type subscription struct {
	eventTypes []EventType
	handler    Subscriber
}

// Bus is an in-memory pub/sub bus with a bounded history ring.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscription
	nextID      int
	eventChan   chan Event
	history     *ring
	closed      bool
	done        chan struct{}
}

// NewBus creates a bus with the given channel buffer size.
func NewBus(bufferSize int) *Bus {
	b := &Bus{
		subscribers: make(map[int]*subscription),
		eventChan:   make(chan Event, bufferSize),
		history:     newRing(bufferSize),
		done:        make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	for {
		select {
		case event := <-b.eventChan:
			b.history.add(event)
			b.notify(event)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) notify(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.matches(event) {
			go sub.handler(event)
		}
	}
}

func (s *subscription) matches(event Event) bool {
	if len(s.eventTypes) == 0 {
		return true
	}
	for _, t := range s.eventTypes {
		if t == event.Type {
			return true
		}
	}
	return false
}

// Publish sends an event without blocking; events are dropped if the bus is
// saturated or closed.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}

	select {
	case b.eventChan <- event:
	default:
	}
}

// PublishCtx sends an event, blocking until accepted or the context ends.
func (b *Bus) PublishCtx(ctx context.Context, event Event) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBusClosed
	}

	select {
	case b.eventChan <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler for specific event types (all types when
// none are given). The returned function unsubscribes.
func (b *Bus) Subscribe(handler Subscriber, eventTypes ...EventType) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subscribers[id] = &subscription{eventTypes: eventTypes, handler: handler}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

// SubscribeChan returns a channel receiving matching events. Slow consumers
// lose events rather than stalling the bus.
func (b *Bus) SubscribeChan(bufSize int, eventTypes ...EventType) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	unsubscribe := b.Subscribe(func(e Event) {
		select {
		case ch <- e:
		default:
		}
	}, eventTypes...)

	return ch, func() {
		unsubscribe()
		close(ch)
	}
}

// History returns up to limit recent events, oldest first.
func (b *Bus) History(limit int) []Event {
	return b.history.get(limit)
}

// Close shuts down the bus.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

// ring is a fixed-size circular buffer of recent events.
type ring struct {
	mu     sync.RWMutex
	events []Event
	size   int
	pos    int
	count  int
}

func newRing(size int) *ring {
	if size <= 0 {
		size = 1
	}
	return &ring{events: make([]Event, size), size: size}
}

func (r *ring) add(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.pos] = event
	r.pos = (r.pos + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

func (r *ring) get(n int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]Event, n)
	start := (r.pos - n + r.size) % r.size
	for i := 0; i < n; i++ {
		out[i] = r.events[(start+i)%r.size]
	}
	return out
}
