package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the engine. Subscribers filter by namespace
// prefix, e.g. "realtime." receives every socket-originated event.
const (
	// realtime.*: raw socket events, published by the channel read pump.
	KindRealtimeConnected  = "realtime.connected"
	KindRealtimeClosed     = "realtime.closed"
	KindRealtimeNewMessage = "realtime.new_message"
	KindRealtimeTyping     = "realtime.typing"
	KindRealtimeStopTyping = "realtime.stop_typing"

	// chat.*: reconciled chat state, published by stores and the coordinator.
	KindChatCurrentChanged = "chat.current_changed"
	KindChatUpdated        = "chat.updated"
	KindChatRemoved        = "chat.removed"
	KindChatTyping         = "chat.typing"
	KindChatStopTyping     = "chat.stop_typing"

	// message.*: open-conversation message window changes.
	KindMessageNew   = "message.new"
	KindMessagePage  = "message.page_loaded"
	KindMessageReset = "message.reset"

	// session.*: credential and connection lifecycle.
	KindSessionStatusChanged = "session.status_changed"
	KindSessionAuthenticated = "session.authenticated"
	KindSessionLoggedOut     = "session.logged_out"
)
