package store

import "time"

// ProfileReference is an immutable snapshot of a user as embedded in chats
// and messages. Snapshots are not kept in sync live; stale copies are
// expected and harmless.
type ProfileReference struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic"`
}

// Message is a single chat message. Append-only per chat; never mutated
// after creation.
type Message struct {
	ID        string           `json:"id"`
	ChatID    string           `json:"chatId"`
	Sender    ProfileReference `json:"sender"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"createdAt"`
}

// ChatSummary is one entry in the chat list. For 1:1 chats the display name
// and avatar derive from the other member; for groups they are stored
// directly and admins is a subset of members.
type ChatSummary struct {
	ID          string             `json:"id"`
	IsGroup     bool               `json:"isGroup"`
	Name        string             `json:"name"`
	DisplayPic  string             `json:"displayPic"`
	Members     []ProfileReference `json:"members"`
	Admins      []ProfileReference `json:"admins"`
	LastMessage *Message           `json:"lastMessage"`
	Unread      map[string]int     `json:"unread"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Peer returns the other member of a 1:1 chat.
func (c *ChatSummary) Peer(viewerID string) (ProfileReference, bool) {
	if c.IsGroup {
		return ProfileReference{}, false
	}
	for _, m := range c.Members {
		if m.ID != viewerID {
			return m, true
		}
	}
	return ProfileReference{}, false
}

// DisplayName returns the group name, or the peer's username for 1:1 chats.
func (c *ChatSummary) DisplayName(viewerID string) string {
	if c.IsGroup {
		return c.Name
	}
	if peer, ok := c.Peer(viewerID); ok {
		return peer.Username
	}
	return c.Name
}

// Avatar returns the group display picture, or the peer's profile picture
// for 1:1 chats.
func (c *ChatSummary) Avatar(viewerID string) string {
	if c.IsGroup {
		return c.DisplayPic
	}
	if peer, ok := c.Peer(viewerID); ok {
		return peer.ProfilePic
	}
	return c.DisplayPic
}

// IsAdmin reports whether userID administers a group chat.
func (c *ChatSummary) IsAdmin(userID string) bool {
	for _, a := range c.Admins {
		if a.ID == userID {
			return true
		}
	}
	return false
}

// UnreadFor returns the viewer's unread count for this chat.
func (c *ChatSummary) UnreadFor(viewerID string) int {
	return c.Unread[viewerID]
}

// clone returns a deep-enough copy for handing out snapshots: slices and
// the unread map are copied, profile references are value types.
func (c *ChatSummary) clone() ChatSummary {
	out := *c
	out.Members = append([]ProfileReference(nil), c.Members...)
	out.Admins = append([]ProfileReference(nil), c.Admins...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	out.Unread = make(map[string]int, len(c.Unread))
	for k, v := range c.Unread {
		out.Unread[k] = v
	}
	return out
}
