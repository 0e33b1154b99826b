package inputs

import (
	"context"
	"sync"
	"time"
)

// PushSource is a source fed externally, e.g. by the gateway's token
// ingestion endpoint or directly through SubmitToken on the engine.
type PushSource struct {
	name string

	mu     sync.Mutex
	ch     chan Token
	closed bool
}

// NewPushSource creates a push source with a buffered token queue.
func NewPushSource(name string) *PushSource {
	return &PushSource{
		name: name,
		ch:   make(chan Token, 256),
	}
}

func (p *PushSource) Name() string { return p.name }

func (p *PushSource) Events() <-chan Token { return p.ch }

// Start is a no-op; push sources have no goroutine of their own.
func (p *PushSource) Start(ctx context.Context) error { return nil }

// Push enqueues a token, stamping the receipt time if unset.
// Tokens pushed after Close are dropped; a full queue drops the oldest entry.
func (p *PushSource) Push(t Token) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if t.ReceivedAt.IsZero() {
		t.ReceivedAt = time.Now()
	}
	if t.Source == "" {
		t.Source = p.name
	}
	select {
	case p.ch <- t:
	default:
		select {
		case <-p.ch:
		default:
		}
		p.ch <- t
	}
}

func (p *PushSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}
