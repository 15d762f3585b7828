package bus

import (
	"strings"
	"sync"
)

// Bus is the in-process pub/sub fabric between the realtime channel, the
// stores and any embedding UI. Subscriptions filter by kind prefix, so
// "chat." receives every chat event and an exact kind receives just that
// one. Consumers subscribe once and keep the unsubscribe for teardown;
// handlers never accumulate across socket reconnects because nothing here
// is tied to a connection.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers evt to every subscriber whose prefix matches its kind.
// Delivery is non-blocking: a subscriber that has let its buffer fill
// loses the event rather than stalling the publisher.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribe registers a prefix subscription with a buffer of bufSize and
// returns the receive channel plus its unsubscribe function.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscriber{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
