package store

import (
	"sync"
	"time"

	"github.com/tmendonca/loop/internal/bus"
)

// MessageState is the per-open-chat pagination state.
type MessageState string

const (
	MessagesIdle      MessageState = "IDLE"
	MessagesLoading   MessageState = "LOADING"
	MessagesLoaded    MessageState = "LOADED"
	MessagesExhausted MessageState = "EXHAUSTED"
)

// MessageStore holds the message window of the currently open chat, newest
// first. Two writers feed it: REST backfill appends older pages to the
// tail, the socket prepends live messages at the head. Every backfill
// response carries the chat id it was fetched for, so a page that arrives
// after the user switched chats is discarded instead of polluting the new
// chat's window.
type MessageStore struct {
	mu      sync.RWMutex
	chatID  string
	msgs    []Message
	ids     map[string]struct{}
	cursor  Cursor
	state   MessageState
	loading bool
	bus     *bus.Bus
}

// NewMessageStore creates an idle message store (no chat open).
func NewMessageStore(b *bus.Bus) *MessageStore {
	return &MessageStore{
		ids:   make(map[string]struct{}),
		state: MessagesIdle,
		bus:   b,
	}
}

// ResetFor clears the window and starts a fresh cursor for chatID. An
// empty id closes the conversation (back to idle).
func (s *MessageStore) ResetFor(chatID string) {
	s.mu.Lock()
	s.chatID = chatID
	s.msgs = nil
	s.ids = make(map[string]struct{})
	s.cursor = NewCursor()
	s.loading = false
	if chatID == "" {
		s.state = MessagesIdle
	} else {
		s.state = MessagesLoading
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.Event{
			Kind:      bus.KindMessageReset,
			Timestamp: time.Now(),
			Payload:   chatID,
		})
	}
}

// ChatID returns the chat the window belongs to.
func (s *MessageStore) ChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatID
}

// State returns the pagination state.
func (s *MessageStore) State() MessageState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Len returns the number of messages in the window.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Messages returns a snapshot of the window, newest first.
func (s *MessageStore) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.msgs...)
}

// Has reports whether a message id is already in the window.
func (s *MessageStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// BeginLoad claims the next backfill page. ok is false when no chat is
// open, the history is exhausted, or a load is already in flight; the
// caller simply does nothing in those cases.
func (s *MessageStore) BeginLoad() (chatID string, page int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatID == "" || s.state == MessagesExhausted || s.loading {
		return "", 0, false
	}
	s.loading = true
	s.state = MessagesLoading
	return s.chatID, s.cursor.Page(), true
}

// AppendPage appends a backfilled page of older messages to the tail of
// the window. The page is discarded when chatID no longer matches the open
// chat (stale response after a switch). Returns whether it was applied.
func (s *MessageStore) AppendPage(chatID string, msgs []Message, hasNext bool) bool {
	s.mu.Lock()
	if chatID != s.chatID {
		s.mu.Unlock()
		return false
	}
	for i := range msgs {
		if _, dup := s.ids[msgs[i].ID]; dup {
			continue
		}
		s.msgs = append(s.msgs, msgs[i])
		s.ids[msgs[i].ID] = struct{}{}
	}
	s.cursor.Advance(hasNext)
	s.loading = false
	if s.cursor.HasMore() {
		s.state = MessagesLoaded
	} else {
		s.state = MessagesExhausted
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.Event{
			Kind:      bus.KindMessagePage,
			Timestamp: time.Now(),
			Payload:   chatID,
		})
	}
	return true
}

// FailLoad releases the in-flight claim without ending pagination. Used
// when a backfill fails in a way the caller surfaces to the user; the
// same page stays fetchable.
func (s *MessageStore) FailLoad() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// Seed fills an empty window with cached history, newest first. Skipped
// when no chat is open, the window already has content, or chatID does
// not match. The cursor is untouched: the first REST page still fetches
// page 0 and the id dedup absorbs the overlap.
func (s *MessageStore) Seed(chatID string, msgs []Message) bool {
	s.mu.Lock()
	if chatID == "" || chatID != s.chatID || len(s.msgs) > 0 {
		s.mu.Unlock()
		return false
	}
	for i := range msgs {
		if _, dup := s.ids[msgs[i].ID]; dup {
			continue
		}
		s.msgs = append(s.msgs, msgs[i])
		s.ids[msgs[i].ID] = struct{}{}
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.Event{
			Kind:      bus.KindMessagePage,
			Timestamp: time.Now(),
			Payload:   chatID,
		})
	}
	return true
}

// MarkExhausted ends backfill for the open chat, the silent degrade on
// transport failure.
func (s *MessageStore) MarkExhausted() {
	s.mu.Lock()
	s.cursor.Exhaust()
	s.loading = false
	if s.state != MessagesIdle {
		s.state = MessagesExhausted
	}
	s.mu.Unlock()
}

// Prepend inserts a live message at the head of the window, bypassing the
// cursor. Messages for a different chat or with an id already present are
// dropped. Returns whether it was applied.
func (s *MessageStore) Prepend(m Message) bool {
	s.mu.Lock()
	if m.ChatID != s.chatID || s.chatID == "" {
		s.mu.Unlock()
		return false
	}
	if _, dup := s.ids[m.ID]; dup {
		s.mu.Unlock()
		return false
	}
	s.msgs = append([]Message{m}, s.msgs...)
	s.ids[m.ID] = struct{}{}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.Event{
			Kind:      bus.KindMessageNew,
			Timestamp: time.Now(),
			Payload:   m,
		})
	}
	return true
}
