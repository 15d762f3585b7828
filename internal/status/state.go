package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tmendonca/loop/internal/bus"
)

// State represents the engine's connection/session state.
type State string

const (
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Degraded     State = "DEGRADED"
	LoggedOut    State = "LOGGED_OUT"
)

// validTransitions defines allowed state transitions. A dropped socket
// moves Connected -> Degraded; the session stays usable over REST until a
// fresh connection is established. LoggedOut is terminal until re-login.
var validTransitions = map[State][]State{
	Disconnected: {Connecting, LoggedOut},
	Connecting:   {Connected, Disconnected, Degraded, LoggedOut},
	Connected:    {Degraded, Disconnected, LoggedOut},
	Degraded:     {Connecting, Disconnected, LoggedOut},
	LoggedOut:    {Connecting},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Disconnected state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindSessionStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
