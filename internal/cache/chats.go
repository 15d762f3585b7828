package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmendonca/loop/internal/store"
)

// SaveChat inserts or updates a cached chat summary.
func (db *DB) SaveChat(c store.ChatSummary) error {
	members, err := json.Marshal(c.Members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}
	admins, err := json.Marshal(c.Admins)
	if err != nil {
		return fmt.Errorf("encode admins: %w", err)
	}
	unread, err := json.Marshal(c.Unread)
	if err != nil {
		return fmt.Errorf("encode unread: %w", err)
	}
	var lastMessage any
	if c.LastMessage != nil {
		encoded, err := json.Marshal(c.LastMessage)
		if err != nil {
			return fmt.Errorf("encode last message: %w", err)
		}
		lastMessage = string(encoded)
	}

	_, err = db.Exec(`
		INSERT INTO chats (id, is_group, name, display_pic, members_json, admins_json, last_message_json, unread_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_group = excluded.is_group,
			name = excluded.name,
			display_pic = excluded.display_pic,
			members_json = excluded.members_json,
			admins_json = excluded.admins_json,
			last_message_json = excluded.last_message_json,
			unread_json = excluded.unread_json,
			updated_at = excluded.updated_at`,
		c.ID, c.IsGroup, c.Name, c.DisplayPic, string(members), string(admins), lastMessage, string(unread), c.UpdatedAt.UnixMilli())
	return err
}

// ListChats returns cached chats sorted by update time descending.
func (db *DB) ListChats(limit int) ([]store.ChatSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, is_group, name, display_pic, members_json, admins_json, last_message_json, unread_json, updated_at
		FROM chats
		ORDER BY updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []store.ChatSummary
	for rows.Next() {
		var (
			c           store.ChatSummary
			members     string
			admins      string
			lastMessage *string
			unread      string
			updatedAt   int64
		)
		if err := rows.Scan(&c.ID, &c.IsGroup, &c.Name, &c.DisplayPic, &members, &admins, &lastMessage, &unread, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(members), &c.Members); err != nil {
			return nil, fmt.Errorf("decode members for %s: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(admins), &c.Admins); err != nil {
			return nil, fmt.Errorf("decode admins for %s: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(unread), &c.Unread); err != nil {
			return nil, fmt.Errorf("decode unread for %s: %w", c.ID, err)
		}
		if lastMessage != nil {
			var m store.Message
			if err := json.Unmarshal([]byte(*lastMessage), &m); err != nil {
				return nil, fmt.Errorf("decode last message for %s: %w", c.ID, err)
			}
			c.LastMessage = &m
		}
		c.UpdatedAt = time.UnixMilli(updatedAt)
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// DeleteChat removes a chat and its cached messages.
func (db *DB) DeleteChat(id string) error {
	if _, err := db.Exec(`DELETE FROM messages WHERE chat_id = ?`, id); err != nil {
		return err
	}
	_, err := db.Exec(`DELETE FROM chats WHERE id = ?`, id)
	return err
}
