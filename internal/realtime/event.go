package realtime

import "encoding/json"

// Frame is the wire envelope for socket events.
type Frame struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
}

// Client -> server operations.
const (
	OpSetup       = "setup"
	OpJoinChat    = "join_chat"
	OpLeaveRoom   = "leave_room"
	OpSendMessage = "send_message"
	OpTyping      = "typing"
	OpStopTyping  = "stop_typing"
)

// Server -> client operations. Typing ops are shared with the client side.
const (
	OpConnected  = "connected"
	OpNewMessage = "new_message"
)

// SetupData registers the connection under the viewer's user id.
type SetupData struct {
	UserID string `json:"userId"`
}

// JoinChatData subscribes the connection to a chat room.
type JoinChatData struct {
	UserID string `json:"userId"`
	ChatID string `json:"chatId"`
}

// LeaveRoomData unsubscribes the connection from a room.
type LeaveRoomData struct {
	ID string `json:"id"`
}

// SendMessageData carries an outgoing message.
type SendMessageData struct {
	ChatID   string `json:"chatId"`
	Content  string `json:"content"`
	SenderID string `json:"senderId"`
}

// TypingData is the payload of typing and stop_typing in both directions.
type TypingData struct {
	ChatID   string `json:"chatId"`
	Username string `json:"username"`
}
