package sync

import (
	"github.com/tmendonca/loop/internal/auth"
	"github.com/tmendonca/loop/internal/bus"
	"github.com/tmendonca/loop/internal/realtime"
	"github.com/tmendonca/loop/internal/status"
	"github.com/tmendonca/loop/internal/store"
	"go.uber.org/zap"
)

// RoomEmitter is the slice of the realtime channel the coordinator uses
// for room membership.
type RoomEmitter interface {
	JoinChat(userID, chatID string) error
	LeaveRoom(id string) error
}

// Cache is the offline warm-up store the coordinator writes through to.
// Chats are saved on every reconciled mutation, messages on arrival, and
// an opened chat's window is seeded from cached history while the first
// backfill page is in flight. May be nil.
type Cache interface {
	SaveChat(c store.ChatSummary) error
	DeleteChat(id string) error
	SaveMessage(m store.Message) error
	ListMessages(chatID string, limit int) ([]store.Message, error)
}

// Coordinator owns the reconciliation of socket events into the stores.
// It subscribes to the bus exactly once, at Start, for the lifetime of
// the session; the subscription survives socket reconnects, so a message
// can never be applied twice by stacked handlers.
type Coordinator struct {
	bus    *bus.Bus
	creds  *auth.Store
	chats  *store.ChatListStore
	msgs   *store.MessageStore
	rooms  RoomEmitter
	state  *status.Machine
	cache  Cache
	logger *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// NewCoordinator wires the coordinator. cache may be nil.
func NewCoordinator(b *bus.Bus, creds *auth.Store, chats *store.ChatListStore, msgs *store.MessageStore, rooms RoomEmitter, state *status.Machine, cache Cache, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		bus:    b,
		creds:  creds,
		chats:  chats,
		msgs:   msgs,
		rooms:  rooms,
		state:  state,
		cache:  cache,
		logger: logger,
	}
}

// Start subscribes to socket and chat events and begins reconciling.
// Idempotent only in the sense that calling it twice is a bug; it is
// invoked once from the app lifecycle.
func (c *Coordinator) Start() {
	realtimeCh, unsubRealtime := c.bus.Subscribe("realtime.", 64)
	chatCh, unsubChat := c.bus.Subscribe("chat.", 64)

	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		defer unsubRealtime()
		defer unsubChat()
		for {
			select {
			case evt := <-realtimeCh:
				c.handleRealtime(evt)
			case evt := <-chatCh:
				c.handleChat(evt)
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop ends reconciliation and waits for the loop to drain.
func (c *Coordinator) Stop() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
}

func (c *Coordinator) handleRealtime(evt bus.Event) {
	switch evt.Kind {
	case bus.KindRealtimeConnected:
		if err := c.state.Transition(status.Connected); err != nil {
			c.logger.Warn("status transition rejected", zap.Error(err))
		}

	case bus.KindRealtimeClosed:
		// REST keeps working on a dead socket; only live delivery stops.
		if c.state.Current() == status.Connected || c.state.Current() == status.Connecting {
			if err := c.state.Transition(status.Degraded); err != nil {
				c.logger.Warn("status transition rejected", zap.Error(err))
			}
		}

	case bus.KindRealtimeNewMessage:
		msg, ok := evt.Payload.(store.Message)
		if !ok {
			return
		}
		c.handleNewMessage(msg)

	case bus.KindRealtimeTyping, bus.KindRealtimeStopTyping:
		data, ok := evt.Payload.(realtime.TypingData)
		if !ok {
			return
		}
		kind := bus.KindChatTyping
		if evt.Kind == bus.KindRealtimeStopTyping {
			kind = bus.KindChatStopTyping
		}
		c.bus.Publish(bus.Event{Kind: kind, Timestamp: evt.Timestamp, Payload: data})
	}
}

// handleChat keeps room membership and the cache in step with the chat
// list. chat.updated carries the mutated chat's id (empty for a whole
// page append), so every reconciled mutation writes through, including
// the coordinator's own lastMessage and unread updates.
func (c *Coordinator) handleChat(evt bus.Event) {
	switch evt.Kind {
	case bus.KindChatCurrentChanged:
		change, ok := evt.Payload.(store.CurrentChange)
		if !ok {
			return
		}
		c.switchRooms(change)
		c.warmMessages(change.Next)

	case bus.KindChatUpdated:
		id, ok := evt.Payload.(string)
		if !ok || c.cache == nil {
			return
		}
		if id == "" {
			for _, chat := range c.chats.Chats() {
				c.saveChat(chat)
			}
			return
		}
		if chat, ok := c.chats.Get(id); ok {
			c.saveChat(chat)
		}

	case bus.KindChatRemoved:
		id, ok := evt.Payload.(string)
		if !ok || c.cache == nil {
			return
		}
		if err := c.cache.DeleteChat(id); err != nil {
			c.logger.Warn("cache delete failed", zap.String("chat_id", id), zap.Error(err))
		}
	}
}

// handleNewMessage applies one inbound message to every projection that
// cares about it. The order is fixed: recency and preview first, then
// either the open window or the unread counter, never both.
func (c *Coordinator) handleNewMessage(msg store.Message) {
	if !c.chats.SetLastMessage(msg) {
		// Message for a chat the list has not paged in yet. Record a
		// minimal entry; the next list fetch or chat open fills it in.
		c.chats.Upsert(store.ChatSummary{
			ID:          msg.ChatID,
			Members:     []store.ProfileReference{msg.Sender},
			LastMessage: &msg,
			UpdatedAt:   msg.CreatedAt,
		})
	}

	if c.cache != nil {
		if err := c.cache.SaveMessage(msg); err != nil {
			c.logger.Warn("cache write failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}

	viewerID := c.creds.ViewerID()
	if msg.Sender.ID == viewerID {
		// Our own message, already echoed locally on send. The store's
		// id dedup would also catch this, but there is nothing left to do.
		return
	}

	if c.chats.CurrentID() == msg.ChatID {
		c.msgs.Prepend(msg)
	} else {
		c.chats.IncrementUnread(msg.ChatID, viewerID)
	}
}

// switchRooms keeps socket room membership in step with the open chat:
// leave the previous room before joining the next.
func (c *Coordinator) switchRooms(change store.CurrentChange) {
	viewerID := c.creds.ViewerID()

	if change.Prev != "" {
		if err := c.rooms.LeaveRoom(change.Prev); err != nil {
			c.logger.Warn("leave room failed", zap.String("chat_id", change.Prev), zap.Error(err))
		}
	}
	if change.Next != "" && viewerID != "" {
		if err := c.rooms.JoinChat(viewerID, change.Next); err != nil {
			c.logger.Warn("join room failed", zap.String("chat_id", change.Next), zap.Error(err))
		}
	}
}

// warmMessages seeds the freshly opened chat's window from cached
// history. Best effort: if the first REST page beat us here the seed is
// a no-op, and the cache is never authoritative.
func (c *Coordinator) warmMessages(chatID string) {
	if c.cache == nil || chatID == "" {
		return
	}
	cached, err := c.cache.ListMessages(chatID, 0)
	if err != nil {
		c.logger.Warn("message warm-up failed", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	if len(cached) == 0 {
		return
	}
	if c.msgs.Seed(chatID, cached) {
		c.logger.Debug("message window seeded from cache",
			zap.String("chat_id", chatID), zap.Int("messages", len(cached)))
	}
}

func (c *Coordinator) saveChat(chat store.ChatSummary) {
	if err := c.cache.SaveChat(chat); err != nil {
		c.logger.Warn("cache write failed", zap.String("chat_id", chat.ID), zap.Error(err))
	}
}
