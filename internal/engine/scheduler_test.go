package engine

import (
	"context"
	"testing"
	"time"
)

func TestActivateCancelsPrevious(t *testing.T) {
	s := NewTickScheduler()
	defer s.Stop()

	a1 := s.Activate(context.Background(), 10*time.Millisecond)
	a2 := s.Activate(context.Background(), 10*time.Millisecond)

	select {
	case <-a1.Ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("previous activation context not cancelled")
	}
	select {
	case <-a2.Ctx.Done():
		t.Fatal("current activation cancelled prematurely")
	default:
	}

	if a2.Gen != a1.Gen+1 {
		t.Errorf("generation = %d, want %d", a2.Gen, a1.Gen+1)
	}
}

func TestActivationTicks(t *testing.T) {
	s := NewTickScheduler()
	defer s.Stop()

	a := s.Activate(context.Background(), 5*time.Millisecond)
	for i := 0; i < 3; i++ {
		select {
		case <-a.C:
		case <-time.After(time.Second):
			t.Fatalf("tick %d never arrived", i)
		}
	}
}

func TestStopCancelsActivation(t *testing.T) {
	s := NewTickScheduler()
	a := s.Activate(context.Background(), 10*time.Millisecond)
	s.Stop()

	select {
	case <-a.Ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the activation")
	}
}
