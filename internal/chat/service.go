package chat

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tmendonca/loop/internal/auth"
	"github.com/tmendonca/loop/internal/rest"
	"github.com/tmendonca/loop/internal/store"
	"go.uber.org/zap"
)

// Emitter is the slice of the realtime channel the service sends through.
// Messages travel over the socket only; the REST surface never accepts
// message content.
type Emitter interface {
	SendMessage(chatID, content, senderID string) error
}

// Service drives the chat surface: list pagination, opening and closing
// conversations, message backfill, sending, group management.
type Service struct {
	gw       *rest.Gateway
	creds    *auth.Store
	chats    *store.ChatListStore
	msgs     *store.MessageStore
	emitter  Emitter
	logger   *zap.Logger
	chatPage int
	msgPage  int
}

// NewService wires the chat service.
func NewService(gw *rest.Gateway, creds *auth.Store, chats *store.ChatListStore, msgs *store.MessageStore, emitter Emitter, logger *zap.Logger, chatPageSize, msgPageSize int) *Service {
	return &Service{
		gw:       gw,
		creds:    creds,
		chats:    chats,
		msgs:     msgs,
		emitter:  emitter,
		logger:   logger,
		chatPage: chatPageSize,
		msgPage:  msgPageSize,
	}
}

type chatPageData struct {
	Chats   []store.ChatSummary `json:"chats"`
	HasPrev bool                `json:"hasPrev"`
	HasNext bool                `json:"hasNext"`
}

type messagePageData struct {
	Messages []store.Message `json:"messages"`
	HasPrev  bool            `json:"hasPrev"`
	HasNext  bool            `json:"hasNext"`
}

// LoadNextChatPage fetches the next chat-list page and folds it into the
// store. A transport failure degrades silently: pagination stops, the
// chats already loaded stay usable, and no error escapes to the caller.
func (s *Service) LoadNextChatPage(ctx context.Context) error {
	page, ok := s.chats.PageToFetch()
	if !ok {
		return nil
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(s.chatPage))

	var data chatPageData
	if err := s.gw.Get(ctx, "/chats", query, &data); err != nil {
		if rest.IsTransport(err) {
			s.logger.Warn("chat page fetch failed, pagination stopped",
				zap.Int("page", page), zap.Error(err))
			s.chats.MarkExhausted()
			return nil
		}
		return err
	}

	s.chats.AppendPage(data.Chats, data.HasNext)
	return nil
}

// OpenChat makes chatID the current conversation and loads its first
// message page. Opening the already-open chat is a no-op.
func (s *Service) OpenChat(ctx context.Context, chatID string) error {
	if s.chats.CurrentID() == chatID {
		return nil
	}
	s.chats.SetCurrent(chatID)
	s.msgs.ResetFor(chatID)
	return s.LoadOlderMessages(ctx)
}

// CloseChat closes the current conversation.
func (s *Service) CloseChat() {
	s.chats.SetCurrent("")
	s.msgs.ResetFor("")
}

// LoadOlderMessages backfills the next page of history for the open chat.
// The page request is tagged with the chat id it was issued for; if the
// user switches chats before the response lands the store discards it.
// Transport failures degrade silently like the chat list.
func (s *Service) LoadOlderMessages(ctx context.Context) error {
	chatID, page, ok := s.msgs.BeginLoad()
	if !ok {
		return nil
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(s.msgPage))

	var data messagePageData
	if err := s.gw.Get(ctx, "/chats/"+chatID+"/messages", query, &data); err != nil {
		if rest.IsTransport(err) {
			s.logger.Warn("message backfill failed, history truncated",
				zap.String("chat_id", chatID), zap.Int("page", page), zap.Error(err))
			s.msgs.MarkExhausted()
			return nil
		}
		// A domain or decode failure surfaces to the caller but does not
		// end backfill; the same page can be retried.
		s.msgs.FailLoad()
		return err
	}

	s.msgs.AppendPage(chatID, data.Messages, data.HasNext)
	return nil
}

// Send emits a message into the open chat over the socket and echoes it
// locally right away. The local echo carries a client-generated id; the
// store's id dedup drops the server copy if the backend ever starts
// echoing messages back to their sender.
func (s *Service) Send(content string) error {
	if content == "" {
		return nil
	}
	chatID := s.chats.CurrentID()
	if chatID == "" {
		return fmt.Errorf("send: no open chat")
	}
	viewer := s.creds.Viewer()
	if viewer.ID == "" {
		return fmt.Errorf("send: not authenticated")
	}

	msg := store.Message{
		ID:     uuid.NewString(),
		ChatID: chatID,
		Sender: store.ProfileReference{
			ID:         viewer.ID,
			Username:   viewer.Username,
			ProfilePic: viewer.ProfilePic,
		},
		Content:   content,
		CreatedAt: time.Now(),
	}

	if err := s.emitter.SendMessage(chatID, content, viewer.ID); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	s.msgs.Prepend(msg)
	s.chats.SetLastMessage(msg)
	return nil
}

// CreateChat starts (or returns) the 1:1 chat with userID and places it
// at the front of the list.
func (s *Service) CreateChat(ctx context.Context, userID string) (store.ChatSummary, error) {
	var chat store.ChatSummary
	if err := s.gw.Post(ctx, "/chats", map[string]string{"userId": userID}, &chat); err != nil {
		return store.ChatSummary{}, err
	}
	s.chats.Upsert(chat)
	return chat, nil
}

// CreateGroup creates a group chat with the given name and member ids.
// The creator is the initial admin.
func (s *Service) CreateGroup(ctx context.Context, name string, memberIDs []string) (store.ChatSummary, error) {
	body := map[string]any{"name": name, "members": memberIDs}
	var chat store.ChatSummary
	if err := s.gw.Post(ctx, "/chats/group", body, &chat); err != nil {
		return store.ChatSummary{}, err
	}
	s.chats.Upsert(chat)
	return chat, nil
}

// Rename changes a group's name. The updated summary replaces the entry
// in place, no recency bump.
func (s *Service) Rename(ctx context.Context, chatID, name string) error {
	return s.patchGroup(ctx, "/chats/"+chatID+"/name", map[string]string{"name": name})
}

// UpdateDisplayPic changes a group's display picture.
func (s *Service) UpdateDisplayPic(ctx context.Context, chatID, displayPic string) error {
	return s.patchGroup(ctx, "/chats/"+chatID+"/display-pic", map[string]string{"displayPic": displayPic})
}

// AddMember adds a user to a group.
func (s *Service) AddMember(ctx context.Context, chatID, userID string) error {
	return s.patchGroup(ctx, "/chats/"+chatID+"/members/add", map[string]string{"userId": userID})
}

// RemoveMember removes a user from a group.
func (s *Service) RemoveMember(ctx context.Context, chatID, userID string) error {
	return s.patchGroup(ctx, "/chats/"+chatID+"/members/remove", map[string]string{"userId": userID})
}

// GrantAdmin promotes a member to group admin.
func (s *Service) GrantAdmin(ctx context.Context, chatID, userID string) error {
	return s.patchGroup(ctx, "/chats/"+chatID+"/admins/add", map[string]string{"userId": userID})
}

// RevokeAdmin demotes a group admin back to member.
func (s *Service) RevokeAdmin(ctx context.Context, chatID, userID string) error {
	return s.patchGroup(ctx, "/chats/"+chatID+"/admins/remove", map[string]string{"userId": userID})
}

func (s *Service) patchGroup(ctx context.Context, path string, body any) error {
	var chat store.ChatSummary
	if err := s.gw.Patch(ctx, path, body, &chat); err != nil {
		return err
	}
	s.chats.Update(chat)
	return nil
}

// MarkSeen tells the backend the viewer has read chatID, and zeroes the
// local unread counter only once the backend acknowledges. On failure the
// counter stays, so the badge keeps matching the server's view.
func (s *Service) MarkSeen(ctx context.Context, chatID string) error {
	if err := s.gw.Post(ctx, "/chats/"+chatID+"/seen", nil, nil); err != nil {
		return err
	}
	s.chats.ResetUnread(chatID, s.creds.ViewerID())
	return nil
}

// DeleteOrExit deletes a 1:1 chat, or exits a group, and removes it from
// the list. The backend decides which semantics apply.
func (s *Service) DeleteOrExit(ctx context.Context, chatID string) error {
	if err := s.gw.Delete(ctx, "/chats/"+chatID, nil, nil); err != nil {
		return err
	}
	if s.chats.CurrentID() == chatID {
		s.CloseChat()
	}
	s.chats.Remove(chatID)
	return nil
}
