package status

import (
	"testing"
	"time"

	"github.com/tmendonca/loop/internal/bus"
)

func TestValidTransitionPath(t *testing.T) {
	m := NewMachine(nil)

	path := []State{Connecting, Connected, Degraded, Connecting, Connected, LoggedOut, Connecting}
	for _, s := range path {
		if err := m.Transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if m.Current() != Connecting {
		t.Errorf("current = %s, want %s", m.Current(), Connecting)
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	m := NewMachine(nil)

	// Disconnected -> Connected skips Connecting.
	if err := m.Transition(Connected); err == nil {
		t.Error("Disconnected -> Connected allowed")
	}
	if m.Current() != Disconnected {
		t.Errorf("state moved on rejected transition: %s", m.Current())
	}
}

func TestLoggedOutOnlyReconnects(t *testing.T) {
	m := NewMachine(nil)
	_ = m.Transition(LoggedOut)

	if err := m.Transition(Degraded); err == nil {
		t.Error("LoggedOut -> Degraded allowed")
	}
	if err := m.Transition(Connecting); err != nil {
		t.Errorf("LoggedOut -> Connecting rejected: %v", err)
	}
}

func TestTransitionPublishesStatusChange(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload = %T, want StatusChange", evt.Payload)
		}
		if change.From != Disconnected || change.To != Connecting {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("no status event published")
	}
}
