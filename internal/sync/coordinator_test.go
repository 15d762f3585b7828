package sync

import (
	gosync "sync"
	"testing"
	"time"

	"github.com/tmendonca/loop/internal/auth"
	"github.com/tmendonca/loop/internal/bus"
	"github.com/tmendonca/loop/internal/realtime"
	"github.com/tmendonca/loop/internal/status"
	"github.com/tmendonca/loop/internal/store"
	"go.uber.org/zap"
)

type fakeRooms struct {
	mu    gosync.Mutex
	calls []string
}

func (f *fakeRooms) JoinChat(userID, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "join:"+chatID)
	return nil
}

func (f *fakeRooms) LeaveRoom(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "leave:"+id)
	return nil
}

func (f *fakeRooms) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeCache struct {
	mu       gosync.Mutex
	saved    map[string]store.ChatSummary
	deleted  []string
	messages []store.Message
	history  map[string][]store.Message
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		saved:   make(map[string]store.ChatSummary),
		history: make(map[string][]store.Message),
	}
}

func (f *fakeCache) SaveChat(c store.ChatSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[c.ID] = c
	return nil
}

func (f *fakeCache) DeleteChat(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCache) SaveMessage(m store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeCache) ListMessages(chatID string, limit int) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Message(nil), f.history[chatID]...), nil
}

func (f *fakeCache) savedChat(id string) (store.ChatSummary, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.saved[id]
	return c, ok
}

func (f *fakeCache) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *fakeCache) savedMessages() []store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Message(nil), f.messages...)
}

type fixture struct {
	bus   *bus.Bus
	creds *auth.Store
	chats *store.ChatListStore
	msgs  *store.MessageStore
	rooms *fakeRooms
	cache *fakeCache
	state *status.Machine
	coord *Coordinator
}

func newFixture(t *testing.T) *fixture {
	return buildFixture(t, nil)
}

func newCachedFixture(t *testing.T) *fixture {
	return buildFixture(t, newFakeCache())
}

func buildFixture(t *testing.T, fc *fakeCache) *fixture {
	t.Helper()
	b := bus.New()
	f := &fixture{
		bus:   b,
		creds: auth.NewStore(nil),
		chats: store.NewChatList(b),
		msgs:  store.NewMessageStore(b),
		rooms: &fakeRooms{},
		cache: fc,
		state: status.NewMachine(b),
	}
	f.creds.SetAuthenticated("tok", auth.User{ID: "viewer", Username: "me"})
	var cache Cache
	if fc != nil {
		cache = fc
	}
	f.coord = NewCoordinator(b, f.creds, f.chats, f.msgs, f.rooms, f.state, cache, zap.NewNop())
	f.coord.Start()
	t.Cleanup(f.coord.Stop)
	return f
}

func (f *fixture) pushMessage(m store.Message) {
	f.bus.Publish(bus.Event{Kind: bus.KindRealtimeNewMessage, Timestamp: time.Now(), Payload: m})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func seedChats(f *fixture, ids ...string) {
	chats := make([]store.ChatSummary, 0, len(ids))
	for _, id := range ids {
		chats = append(chats, store.ChatSummary{
			ID:      id,
			Members: []store.ProfileReference{{ID: "viewer"}, {ID: "peer"}},
			Unread:  map[string]int{},
		})
	}
	f.chats.AppendPage(chats, true)
}

func TestMessageForOpenChatPrepends(t *testing.T) {
	f := newFixture(t)
	seedChats(f, "c1", "c2")
	f.chats.SetCurrent("c1")
	f.msgs.ResetFor("c1")

	f.pushMessage(store.Message{
		ID: "m1", ChatID: "c1",
		Sender:    store.ProfileReference{ID: "peer"},
		Content:   "hi",
		CreatedAt: time.Now(),
	})

	waitFor(t, func() bool { return f.msgs.Len() == 1 })

	c1, _ := f.chats.Get("c1")
	if c1.UnreadFor("viewer") != 0 {
		t.Errorf("open chat unread = %d, want 0", c1.UnreadFor("viewer"))
	}
	if c1.LastMessage == nil || c1.LastMessage.ID != "m1" {
		t.Error("lastMessage not updated")
	}
	if f.chats.Chats()[0].ID != "c1" {
		t.Error("chat not bumped to front")
	}
}

func TestMessageForOtherChatIncrementsUnread(t *testing.T) {
	f := newFixture(t)
	seedChats(f, "c1", "c2")
	f.chats.SetCurrent("c1")
	f.msgs.ResetFor("c1")

	f.pushMessage(store.Message{
		ID: "m2", ChatID: "c2",
		Sender:    store.ProfileReference{ID: "peer"},
		Content:   "psst",
		CreatedAt: time.Now(),
	})

	waitFor(t, func() bool {
		c2, _ := f.chats.Get("c2")
		return c2.UnreadFor("viewer") == 1
	})

	if f.msgs.Len() != 0 {
		t.Errorf("other chat's message leaked into open window: len = %d", f.msgs.Len())
	}
	c2, _ := f.chats.Get("c2")
	if c2.LastMessage == nil || c2.LastMessage.ID != "m2" {
		t.Error("lastMessage not updated for closed chat")
	}
}

func TestOwnEchoDoesNotCountOrDuplicate(t *testing.T) {
	f := newFixture(t)
	seedChats(f, "c1")
	f.chats.SetCurrent("c1")
	f.msgs.ResetFor("c1")

	// The local optimistic echo already placed the message.
	local := store.Message{
		ID: "m-local", ChatID: "c1",
		Sender:    store.ProfileReference{ID: "viewer"},
		Content:   "mine",
		CreatedAt: time.Now(),
	}
	f.msgs.Prepend(local)

	// Server echoes the same message back to the sender's room.
	f.pushMessage(local)

	waitFor(t, func() bool {
		c1, _ := f.chats.Get("c1")
		return c1.LastMessage != nil && c1.LastMessage.ID == "m-local"
	})

	if f.msgs.Len() != 1 {
		t.Errorf("own echo duplicated: len = %d, want 1", f.msgs.Len())
	}
	c1, _ := f.chats.Get("c1")
	if c1.UnreadFor("viewer") != 0 {
		t.Errorf("own message counted as unread: %d", c1.UnreadFor("viewer"))
	}
}

func TestUnknownChatGetsStubEntry(t *testing.T) {
	f := newFixture(t)

	f.pushMessage(store.Message{
		ID: "m1", ChatID: "brand-new",
		Sender:    store.ProfileReference{ID: "peer", Username: "peer"},
		Content:   "hello there",
		CreatedAt: time.Now(),
	})

	waitFor(t, func() bool { return f.chats.Len() == 1 })

	c, ok := f.chats.Get("brand-new")
	if !ok {
		t.Fatal("stub chat not created")
	}
	if c.LastMessage == nil || c.LastMessage.ID != "m1" {
		t.Error("stub chat missing lastMessage")
	}
}

func TestRoomSwitchLeavesBeforeJoining(t *testing.T) {
	f := newFixture(t)
	seedChats(f, "c1", "c2")

	f.chats.SetCurrent("c1")
	waitFor(t, func() bool { return len(f.rooms.snapshot()) == 1 })

	f.chats.SetCurrent("c2")
	waitFor(t, func() bool { return len(f.rooms.snapshot()) == 3 })

	want := []string{"join:c1", "leave:c1", "join:c2"}
	got := f.rooms.snapshot()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("room calls = %v, want %v", got, want)
		}
	}
}

func TestConnectionEventsDriveStatus(t *testing.T) {
	f := newFixture(t)
	_ = f.state.Transition(status.Connecting)

	f.bus.Publish(bus.Event{Kind: bus.KindRealtimeConnected, Timestamp: time.Now()})
	waitFor(t, func() bool { return f.state.Current() == status.Connected })

	f.bus.Publish(bus.Event{Kind: bus.KindRealtimeClosed, Timestamp: time.Now()})
	waitFor(t, func() bool { return f.state.Current() == status.Degraded })
}

func TestInboundMessageWritesThroughToCache(t *testing.T) {
	f := newCachedFixture(t)
	seedChats(f, "c1", "c2")

	msg := store.Message{
		ID: "m1", ChatID: "c1",
		Sender:    store.ProfileReference{ID: "peer"},
		Content:   "hi",
		CreatedAt: time.Now(),
	}
	f.pushMessage(msg)

	// Both halves of the write-through land: the message row and the
	// chat row with the refreshed lastMessage.
	waitFor(t, func() bool { return len(f.cache.savedMessages()) == 1 })
	waitFor(t, func() bool {
		c, ok := f.cache.savedChat("c1")
		return ok && c.LastMessage != nil && c.LastMessage.ID == "m1"
	})
}

func TestChatPageAppendSavesAllChats(t *testing.T) {
	f := newCachedFixture(t)
	seedChats(f, "c1", "c2", "c3")

	waitFor(t, func() bool {
		for _, id := range []string{"c1", "c2", "c3"} {
			if _, ok := f.cache.savedChat(id); !ok {
				return false
			}
		}
		return true
	})
}

func TestDiscoveredChatStubIsCached(t *testing.T) {
	f := newCachedFixture(t)

	f.pushMessage(store.Message{
		ID: "m1", ChatID: "brand-new",
		Sender:    store.ProfileReference{ID: "peer", Username: "peer"},
		Content:   "hello",
		CreatedAt: time.Now(),
	})

	waitFor(t, func() bool {
		c, ok := f.cache.savedChat("brand-new")
		return ok && c.LastMessage != nil
	})
}

func TestChatRemovalDeletesFromCache(t *testing.T) {
	f := newCachedFixture(t)
	seedChats(f, "c1", "c2")

	f.chats.Remove("c1")

	waitFor(t, func() bool {
		ids := f.cache.deletedIDs()
		return len(ids) == 1 && ids[0] == "c1"
	})
}

func TestOpeningChatSeedsWindowFromCache(t *testing.T) {
	f := newCachedFixture(t)
	seedChats(f, "c1")
	f.cache.history["c1"] = []store.Message{
		{ID: "h1", ChatID: "c1", Sender: store.ProfileReference{ID: "peer"}, Content: "old", CreatedAt: time.Now().Add(-time.Hour)},
		{ID: "h2", ChatID: "c1", Sender: store.ProfileReference{ID: "peer"}, Content: "older", CreatedAt: time.Now().Add(-2 * time.Hour)},
	}

	f.msgs.ResetFor("c1")
	f.chats.SetCurrent("c1")

	waitFor(t, func() bool { return f.msgs.Len() == 2 })
	if f.msgs.Messages()[0].ID != "h1" {
		t.Errorf("head = %s, want h1", f.msgs.Messages()[0].ID)
	}
}

func TestTypingForwardedAsChatEvents(t *testing.T) {
	f := newFixture(t)
	events, unsub := f.bus.Subscribe("chat.typing", 4)
	defer unsub()

	f.bus.Publish(bus.Event{
		Kind:      bus.KindRealtimeTyping,
		Timestamp: time.Now(),
		Payload:   realtime.TypingData{ChatID: "c1", Username: "bob"},
	})

	select {
	case evt := <-events:
		data, ok := evt.Payload.(realtime.TypingData)
		if !ok || data.ChatID != "c1" || data.Username != "bob" {
			t.Errorf("payload = %+v", evt.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("typing event never forwarded")
	}
}
