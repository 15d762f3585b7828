package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmendonca/loop/internal/store"
)

// SaveMessage inserts a message into the cache. Replays of the same id
// overwrite harmlessly.
func (db *DB) SaveMessage(m store.Message) error {
	sender, err := json.Marshal(m.Sender)
	if err != nil {
		return fmt.Errorf("encode sender: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO messages (id, chat_id, sender_json, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chat_id = excluded.chat_id,
			sender_json = excluded.sender_json,
			content = excluded.content,
			created_at = excluded.created_at`,
		m.ID, m.ChatID, string(sender), m.Content, m.CreatedAt.UnixMilli())
	return err
}

// ListMessages returns cached messages for a chat, newest first.
func (db *DB) ListMessages(chatID string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, chat_id, sender_json, content, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []store.Message
	for rows.Next() {
		var (
			m         store.Message
			sender    string
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &sender, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sender), &m.Sender); err != nil {
			return nil, fmt.Errorf("decode sender for %s: %w", m.ID, err)
		}
		m.CreatedAt = time.UnixMilli(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
