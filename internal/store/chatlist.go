package store

import (
	"sync"
	"time"

	"github.com/tmendonca/loop/internal/bus"
)

// CurrentChange is the payload of chat.current_changed events.
type CurrentChange struct {
	Prev string
	Next string
}

// ChatListStore is the normalized collection of chat summaries, ordered by
// recency. Each chat exists exactly once in byID; the current chat is an id
// lookup into the same map, never a duplicated copy, so every mutation is
// visible through both views by construction.
type ChatListStore struct {
	mu      sync.RWMutex
	byID    map[string]*ChatSummary
	order   []string
	current string
	cursor  Cursor
	bus     *bus.Bus
}

// NewChatList creates an empty chat list with a fresh cursor.
func NewChatList(b *bus.Bus) *ChatListStore {
	return &ChatListStore{
		byID:   make(map[string]*ChatSummary),
		cursor: NewCursor(),
		bus:    b,
	}
}

// Len returns the number of chats.
func (s *ChatListStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Chats returns a snapshot of all chats in recency order.
func (s *ChatListStore) Chats() []ChatSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatSummary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].clone())
	}
	return out
}

// Get returns a snapshot of one chat.
func (s *ChatListStore) Get(id string) (ChatSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return ChatSummary{}, false
	}
	return c.clone(), true
}

// PageToFetch returns the next chat-list page, or ok=false when the list
// is exhausted.
func (s *ChatListStore) PageToFetch() (page int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor.Page(), s.cursor.HasMore()
}

// AppendPage appends a fetched page. Chats already present are updated in
// place without reordering; new chats append in the server's order. The
// collection is never replaced.
func (s *ChatListStore) AppendPage(chats []ChatSummary, hasNext bool) {
	s.mu.Lock()
	for i := range chats {
		c := chats[i]
		if existing, ok := s.byID[c.ID]; ok {
			*existing = c
			continue
		}
		s.byID[c.ID] = &c
		s.order = append(s.order, c.ID)
	}
	s.cursor.Advance(hasNext)
	s.mu.Unlock()

	s.publishUpdated("")
}

// MarkExhausted stops pagination, the silent degrade on transport failure.
func (s *ChatListStore) MarkExhausted() {
	s.mu.Lock()
	s.cursor.Exhaust()
	s.mu.Unlock()
}

// Seed inserts cached chats without touching the pagination cursor. Used
// only for cache warm-up before the first page fetch; live data overwrites
// seeded entries.
func (s *ChatListStore) Seed(chats []ChatSummary) {
	s.mu.Lock()
	for i := range chats {
		c := chats[i]
		if _, ok := s.byID[c.ID]; ok {
			continue
		}
		s.byID[c.ID] = &c
		s.order = append(s.order, c.ID)
	}
	s.mu.Unlock()
}

// SetCurrent swaps the current-chat pointer and returns the previous id.
// A pure pointer swap: unread counters are untouched (marking seen is a
// distinct, explicit action). Publishes chat.current_changed.
func (s *ChatListStore) SetCurrent(id string) (prev string) {
	s.mu.Lock()
	prev = s.current
	s.current = id
	s.mu.Unlock()

	if prev != id && s.bus != nil {
		s.bus.Publish(bus.Event{
			Kind:      bus.KindChatCurrentChanged,
			Timestamp: time.Now(),
			Payload:   CurrentChange{Prev: prev, Next: id},
		})
	}
	return prev
}

// CurrentID returns the open chat's id, empty when none is open.
func (s *ChatListStore) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Current returns a snapshot of the open chat.
func (s *ChatListStore) Current() (ChatSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return ChatSummary{}, false
	}
	c, ok := s.byID[s.current]
	if !ok {
		return ChatSummary{}, false
	}
	return c.clone(), true
}

// Upsert inserts a chat or replaces an existing entry, moving it to the
// front. Used for chat-creation responses and socket-discovered chats.
func (s *ChatListStore) Upsert(c ChatSummary) {
	s.mu.Lock()
	if _, ok := s.byID[c.ID]; ok {
		*s.byID[c.ID] = c
		s.moveToFront(c.ID)
	} else {
		s.byID[c.ID] = &c
		s.order = append([]string{c.ID}, s.order...)
	}
	s.mu.Unlock()

	s.publishUpdated(c.ID)
}

// Update replaces a chat's data in place without reordering. Used for
// group-management responses (rename, membership, admins, display picture).
// Returns false if the chat is unknown.
func (s *ChatListStore) Update(c ChatSummary) bool {
	s.mu.Lock()
	existing, ok := s.byID[c.ID]
	if ok {
		*existing = c
	}
	s.mu.Unlock()

	if ok {
		s.publishUpdated(c.ID)
	}
	return ok
}

// Apply runs a partial mutation against a chat entry. The entry is the only
// representation of the chat, so the current-chat view sees the change too.
// Returns false if the chat is unknown.
func (s *ChatListStore) Apply(id string, fn func(*ChatSummary)) bool {
	s.mu.Lock()
	c, ok := s.byID[id]
	if ok {
		fn(c)
	}
	s.mu.Unlock()

	if ok {
		s.publishUpdated(id)
	}
	return ok
}

// SetLastMessage records a chat's newest message and bumps it to the front
// of the recency order. Returns false if the chat is unknown.
func (s *ChatListStore) SetLastMessage(m Message) bool {
	s.mu.Lock()
	c, ok := s.byID[m.ChatID]
	if ok {
		msg := m
		c.LastMessage = &msg
		c.UpdatedAt = m.CreatedAt
		s.moveToFront(m.ChatID)
	}
	s.mu.Unlock()

	if ok {
		s.publishUpdated(m.ChatID)
	}
	return ok
}

// IncrementUnread bumps the viewer's unread counter for a chat, unless the
// chat is currently open.
func (s *ChatListStore) IncrementUnread(chatID, viewerID string) {
	s.mu.Lock()
	changed := false
	if chatID != s.current {
		if c, ok := s.byID[chatID]; ok {
			if c.Unread == nil {
				c.Unread = make(map[string]int)
			}
			c.Unread[viewerID]++
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.publishUpdated(chatID)
	}
}

// ResetUnread zeroes the viewer's unread counter. Callers invoke this only
// after the backend acknowledged the mark-seen, so the server stays the
// source of truth across tabs.
func (s *ChatListStore) ResetUnread(chatID, viewerID string) {
	s.mu.Lock()
	changed := false
	if c, ok := s.byID[chatID]; ok && c.Unread[viewerID] != 0 {
		c.Unread[viewerID] = 0
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.publishUpdated(chatID)
	}
}

// Remove deletes a chat (delete/exit). Clears the current pointer if it
// pointed at the removed chat.
func (s *ChatListStore) Remove(id string) {
	s.mu.Lock()
	_, ok := s.byID[id]
	if ok {
		delete(s.byID, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		if s.current == id {
			s.current = ""
		}
	}
	s.mu.Unlock()

	if ok && s.bus != nil {
		s.bus.Publish(bus.Event{
			Kind:      bus.KindChatRemoved,
			Timestamp: time.Now(),
			Payload:   id,
		})
	}
}

// moveToFront is called with mu held.
func (s *ChatListStore) moveToFront(id string) {
	for i, existing := range s.order {
		if existing == id {
			if i > 0 {
				s.order = append(s.order[:i], s.order[i+1:]...)
				s.order = append([]string{id}, s.order...)
			}
			return
		}
	}
}

func (s *ChatListStore) publishUpdated(chatID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      bus.KindChatUpdated,
		Timestamp: time.Now(),
		Payload:   chatID,
	})
}
