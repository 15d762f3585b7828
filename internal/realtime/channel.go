package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tmendonca/loop/internal/bus"
	"github.com/tmendonca/loop/internal/store"
	"go.uber.org/zap"
)

const (
	// writeWait bounds a single frame write; a stalled connection is
	// treated as dead rather than blocking the caller.
	writeWait = 10 * time.Second

	maxMessageSize = 64 * 1024
)

// Channel is the persistent bidirectional connection to the backend. It is
// established once per session: Connect dials, registers the connection
// with a setup frame and starts the read pump, which publishes every
// inbound event on the bus. Consumers subscribe to the bus exactly once;
// the channel itself holds no handler registrations, so reconnecting can
// never accumulate duplicate handlers.
//
// A dropped connection simply stops delivering events (realtime.closed is
// published); nothing here retries.
type Channel struct {
	url    string
	bus    *bus.Bus
	logger *zap.Logger

	mu   sync.Mutex // guards conn writes and replacement
	conn *websocket.Conn
}

// NewChannel creates a disconnected channel for the given websocket URL.
func NewChannel(url string, b *bus.Bus, logger *zap.Logger) *Channel {
	return &Channel{url: url, bus: b, logger: logger}
}

// Connect dials the backend, sends the setup frame for userID and starts
// the read pump.
func (c *Channel) Connect(ctx context.Context, userID string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial socket: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.emit(OpSetup, SetupData{UserID: userID}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("setup: %w", err)
	}

	go c.readPump(conn)

	c.logger.Info("socket connected", zap.String("url", c.url))
	return nil
}

// Connected reports whether a connection is currently held.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close terminates the connection. Safe to call when disconnected.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return conn.Close()
}

// JoinChat subscribes to a chat room.
func (c *Channel) JoinChat(userID, chatID string) error {
	return c.emit(OpJoinChat, JoinChatData{UserID: userID, ChatID: chatID})
}

// LeaveRoom unsubscribes from a room.
func (c *Channel) LeaveRoom(id string) error {
	return c.emit(OpLeaveRoom, LeaveRoomData{ID: id})
}

// SendMessage sends a message into a chat room.
func (c *Channel) SendMessage(chatID, content, senderID string) error {
	return c.emit(OpSendMessage, SendMessageData{ChatID: chatID, Content: content, SenderID: senderID})
}

// Typing signals that the viewer started typing in a chat.
func (c *Channel) Typing(chatID, username string) error {
	return c.emit(OpTyping, TypingData{ChatID: chatID, Username: username})
}

// StopTyping signals that the viewer stopped typing.
func (c *Channel) StopTyping(chatID, username string) error {
	return c.emit(OpStopTyping, TypingData{ChatID: chatID, Username: username})
}

// emit writes one frame. gorilla/websocket allows only one concurrent
// writer, hence the mutex.
func (c *Channel) emit(op string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}
	frame, err := json.Marshal(Frame{Op: op, Data: payload})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("emit %s: not connected", op)
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// readPump reads frames until the connection dies and publishes them as
// bus events.
func (c *Channel) readPump(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
		c.publish(bus.KindRealtimeClosed, nil)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("socket closed unexpectedly", zap.Error(err))
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.logger.Warn("invalid socket frame", zap.Error(err))
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Channel) dispatch(frame Frame) {
	switch frame.Op {
	case OpConnected:
		c.publish(bus.KindRealtimeConnected, nil)

	case OpNewMessage:
		var msg store.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			c.logger.Warn("invalid new_message payload", zap.Error(err))
			return
		}
		c.publish(bus.KindRealtimeNewMessage, msg)

	case OpTyping, OpStopTyping:
		var data TypingData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			c.logger.Warn("invalid typing payload", zap.Error(err))
			return
		}
		kind := bus.KindRealtimeTyping
		if frame.Op == OpStopTyping {
			kind = bus.KindRealtimeStopTyping
		}
		c.publish(kind, data)

	default:
		c.logger.Debug("unknown socket op", zap.String("op", frame.Op))
	}
}

func (c *Channel) publish(kind string, payload any) {
	c.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
