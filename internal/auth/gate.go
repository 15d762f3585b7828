package auth

import "sync"

// Gate is the single-flight coordinator for credential renewal. At most one
// renewal call is in flight at any time; every other request that hits an
// expired credential waits for the holder to finish instead of starting a
// renewal of its own.
type Gate struct {
	mu       sync.Mutex
	inflight chan struct{}
}

var unlocked = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// NewGate creates an unlocked gate.
func NewGate() *Gate {
	return &Gate{}
}

// Acquire marks a renewal in flight unless one already is. leader reports
// whether the caller now holds the gate and must perform the renewal; done
// is closed when the holder releases.
func (g *Gate) Acquire() (leader bool, done <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight != nil {
		return false, g.inflight
	}
	g.inflight = make(chan struct{})
	return true, g.inflight
}

// Release unblocks all waiters. Only the leader calls this, exactly once,
// whether the renewal succeeded or failed.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight != nil {
		close(g.inflight)
		g.inflight = nil
	}
}

// Unlocked returns a channel that is closed once no renewal is in flight.
// Requests select on it before attaching the credential, so a burst that
// arrives mid-renewal picks up the fresh token instead of the dying one.
func (g *Gate) Unlocked() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight != nil {
		return g.inflight
	}
	return unlocked
}

// Held reports whether a renewal is currently in flight.
func (g *Gate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight != nil
}
