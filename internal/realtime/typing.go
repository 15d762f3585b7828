package realtime

import (
	"sync"
	"time"
)

// TypingEmitter is the slice of the channel the tracker needs.
type TypingEmitter interface {
	Typing(chatID, username string) error
	StopTyping(chatID, username string) error
}

// Tracker debounces typing signals per the composer's keystrokes. The
// first keystroke emits typing immediately; stop_typing fires only after
// the input has been quiet for the debounce interval (trailing edge).
// Clearing the input emits stop_typing at once.
type Tracker struct {
	emitter  TypingEmitter
	interval time.Duration

	mu       sync.Mutex
	active   bool
	gen      uint64 // invalidates timers that fired concurrently with a keystroke
	chatID   string
	username string
	timer    *time.Timer
}

// NewTracker creates a tracker with the given trailing debounce interval.
func NewTracker(emitter TypingEmitter, interval time.Duration) *Tracker {
	return &Tracker{emitter: emitter, interval: interval}
}

// Input is called on every composer change. An empty content means the
// input was cleared.
func (t *Tracker) Input(chatID, username, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if content == "" {
		t.stopLocked()
		return
	}

	if t.active && t.chatID == chatID {
		t.gen++
		t.armLocked()
		return
	}

	// Switching chats mid-typing: close out the old room first.
	if t.active {
		t.stopLocked()
	}

	t.active = true
	t.gen++
	t.chatID = chatID
	t.username = username
	_ = t.emitter.Typing(chatID, username)
	t.armLocked()
}

// Stop force-emits stop_typing, used when a message is sent or the chat
// closes.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// armLocked schedules the trailing stop for the current generation.
// Called with mu held.
func (t *Tracker) armLocked() {
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.interval, func() { t.expire(gen) })
}

func (t *Tracker) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active || gen != t.gen {
		// A keystroke landed after this timer was scheduled.
		return
	}
	t.active = false
	_ = t.emitter.StopTyping(t.chatID, t.username)
}

// stopLocked is called with mu held.
func (t *Tracker) stopLocked() {
	if !t.active {
		return
	}
	t.active = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
	}
	_ = t.emitter.StopTyping(t.chatID, t.username)
}
