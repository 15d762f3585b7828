package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tmendonca/loop/internal/bus"
	"github.com/tmendonca/loop/internal/store"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{}

// testSocket runs a websocket server that feeds received frames to frames
// and lets the test push frames back through send.
func testSocket(t *testing.T) (url string, frames <-chan Frame, send chan<- Frame) {
	t.Helper()
	in := make(chan Frame, 16)
	out := make(chan Frame, 16)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go func() {
			for frame := range out {
				encoded, _ := json.Marshal(frame)
				if err := conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
					return
				}
			}
			_ = conn.Close()
		}()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame Frame
			if json.Unmarshal(raw, &frame) == nil {
				in <- frame
			}
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(out) })

	return "ws" + strings.TrimPrefix(srv.URL, "http"), in, out
}

func recvFrame(t *testing.T, frames <-chan Frame) Frame {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for frame")
		return Frame{}
	}
}

func recvEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for bus event")
		return bus.Event{}
	}
}

func TestConnectSendsSetup(t *testing.T) {
	url, frames, _ := testSocket(t)
	ch := NewChannel(url, bus.New(), zap.NewNop())

	if err := ch.Connect(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ch.Close() }()

	frame := recvFrame(t, frames)
	if frame.Op != OpSetup {
		t.Fatalf("first op = %q, want setup", frame.Op)
	}
	var data SetupData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.UserID != "u1" {
		t.Errorf("userId = %q, want u1", data.UserID)
	}
}

func TestEmitOps(t *testing.T) {
	url, frames, _ := testSocket(t)
	ch := NewChannel(url, bus.New(), zap.NewNop())
	if err := ch.Connect(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ch.Close() }()
	recvFrame(t, frames) // setup

	if err := ch.JoinChat("u1", "c1"); err != nil {
		t.Fatal(err)
	}
	if err := ch.SendMessage("c1", "hello", "u1"); err != nil {
		t.Fatal(err)
	}
	if err := ch.LeaveRoom("c1"); err != nil {
		t.Fatal(err)
	}

	wantOps := []string{OpJoinChat, OpSendMessage, OpLeaveRoom}
	for _, want := range wantOps {
		if frame := recvFrame(t, frames); frame.Op != want {
			t.Errorf("op = %q, want %q", frame.Op, want)
		}
	}
}

func TestInboundFramesReachBus(t *testing.T) {
	url, frames, send := testSocket(t)
	b := bus.New()
	events, unsub := b.Subscribe("realtime.", 16)
	defer unsub()

	ch := NewChannel(url, b, zap.NewNop())
	if err := ch.Connect(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ch.Close() }()
	recvFrame(t, frames) // setup

	send <- Frame{Op: OpConnected}
	if evt := recvEvent(t, events); evt.Kind != bus.KindRealtimeConnected {
		t.Errorf("kind = %q, want connected", evt.Kind)
	}

	payload, _ := json.Marshal(store.Message{ID: "m1", ChatID: "c1", Content: "hi"})
	send <- Frame{Op: OpNewMessage, Data: payload}
	evt := recvEvent(t, events)
	if evt.Kind != bus.KindRealtimeNewMessage {
		t.Fatalf("kind = %q, want new_message", evt.Kind)
	}
	msg, ok := evt.Payload.(store.Message)
	if !ok || msg.ID != "m1" || msg.ChatID != "c1" {
		t.Errorf("payload = %+v", evt.Payload)
	}

	typing, _ := json.Marshal(TypingData{ChatID: "c1", Username: "bob"})
	send <- Frame{Op: OpTyping, Data: typing}
	evt = recvEvent(t, events)
	if evt.Kind != bus.KindRealtimeTyping {
		t.Fatalf("kind = %q, want typing", evt.Kind)
	}
	if data, ok := evt.Payload.(TypingData); !ok || data.Username != "bob" {
		t.Errorf("payload = %+v", evt.Payload)
	}
}

func TestClosePublishesRealtimeClosed(t *testing.T) {
	url, frames, _ := testSocket(t)
	b := bus.New()
	events, unsub := b.Subscribe(bus.KindRealtimeClosed, 4)
	defer unsub()

	ch := NewChannel(url, b, zap.NewNop())
	if err := ch.Connect(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	recvFrame(t, frames)

	if err := ch.Close(); err != nil {
		t.Fatal(err)
	}

	if evt := recvEvent(t, events); evt.Kind != bus.KindRealtimeClosed {
		t.Errorf("kind = %q, want closed", evt.Kind)
	}
	if ch.Connected() {
		t.Error("channel still reports connected")
	}
}

func TestEmitWhileDisconnected(t *testing.T) {
	ch := NewChannel("ws://localhost:0", bus.New(), zap.NewNop())
	if err := ch.SendMessage("c1", "hi", "u1"); err == nil {
		t.Error("emit succeeded with no connection")
	}
}
