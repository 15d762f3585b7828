package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tmendonca/loop/internal/store"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestSaveAndListChats(t *testing.T) {
	db := testDB(t)

	older := store.ChatSummary{
		ID:        "c1",
		Members:   []store.ProfileReference{{ID: "u1", Username: "ana"}},
		Unread:    map[string]int{"u1": 2},
		UpdatedAt: time.UnixMilli(1000),
	}
	lastMsg := store.Message{ID: "m1", ChatID: "c2", Content: "hi", CreatedAt: time.UnixMilli(2000)}
	newer := store.ChatSummary{
		ID:          "c2",
		IsGroup:     true,
		Name:        "group",
		Members:     []store.ProfileReference{{ID: "u1"}, {ID: "u2"}},
		Admins:      []store.ProfileReference{{ID: "u1"}},
		LastMessage: &lastMsg,
		Unread:      map[string]int{},
		UpdatedAt:   time.UnixMilli(2000),
	}

	if err := db.SaveChat(older); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveChat(newer); err != nil {
		t.Fatal(err)
	}

	chats, err := db.ListChats(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 {
		t.Fatalf("chats = %d, want 2", len(chats))
	}
	// Most recently updated first.
	if chats[0].ID != "c2" {
		t.Errorf("front = %s, want c2", chats[0].ID)
	}
	if chats[0].LastMessage == nil || chats[0].LastMessage.ID != "m1" {
		t.Error("lastMessage lost in round trip")
	}
	if !chats[0].IsAdmin("u1") {
		t.Error("admins lost in round trip")
	}
	if chats[1].UnreadFor("u1") != 2 {
		t.Error("unread lost in round trip")
	}
}

func TestSaveChatUpserts(t *testing.T) {
	db := testDB(t)

	c := store.ChatSummary{ID: "c1", Name: "before", Unread: map[string]int{}, UpdatedAt: time.UnixMilli(1)}
	if err := db.SaveChat(c); err != nil {
		t.Fatal(err)
	}
	c.Name = "after"
	if err := db.SaveChat(c); err != nil {
		t.Fatal(err)
	}

	chats, err := db.ListChats(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 || chats[0].Name != "after" {
		t.Errorf("chats = %+v", chats)
	}
}

func TestSaveAndListMessages(t *testing.T) {
	db := testDB(t)

	for i, at := range []int64{3000, 1000, 2000} {
		m := store.Message{
			ID:        []string{"m3", "m1", "m2"}[i],
			ChatID:    "c1",
			Sender:    store.ProfileReference{ID: "u1", Username: "ana"},
			Content:   "msg",
			CreatedAt: time.UnixMilli(at),
		}
		if err := db.SaveMessage(m); err != nil {
			t.Fatal(err)
		}
	}
	// A message in another chat must not leak in.
	if err := db.SaveMessage(store.Message{ID: "x", ChatID: "c2", Sender: store.ProfileReference{ID: "u1"}, CreatedAt: time.UnixMilli(5000)}); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	// Newest first.
	if msgs[0].ID != "m3" || msgs[2].ID != "m1" {
		t.Errorf("order = %s..%s, want m3..m1", msgs[0].ID, msgs[2].ID)
	}
	if msgs[0].Sender.Username != "ana" {
		t.Error("sender lost in round trip")
	}
}

func TestDeleteChatCascades(t *testing.T) {
	db := testDB(t)

	_ = db.SaveChat(store.ChatSummary{ID: "c1", Unread: map[string]int{}, UpdatedAt: time.UnixMilli(1)})
	_ = db.SaveMessage(store.Message{ID: "m1", ChatID: "c1", Sender: store.ProfileReference{ID: "u1"}, CreatedAt: time.UnixMilli(1)})

	if err := db.DeleteChat("c1"); err != nil {
		t.Fatal(err)
	}

	chats, _ := db.ListChats(10)
	if len(chats) != 0 {
		t.Error("chat still cached after delete")
	}
	msgs, _ := db.ListMessages("c1", 10)
	if len(msgs) != 0 {
		t.Error("messages still cached after delete")
	}
}
