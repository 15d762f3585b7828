package feed

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"github.com/tmendonca/loop/internal/rest"
	"github.com/tmendonca/loop/internal/store"
	"go.uber.org/zap"
)

// Pager accumulates one paginated feed query. Every consumer of the
// zero-based page envelope behaves the same way: a transport failure
// exhausts the pager silently, keeping whatever already loaded; a domain
// or decode failure surfaces. Switching the query means a new Pager, not
// a reset.
type Pager[T any] struct {
	mu     sync.Mutex
	cursor store.Cursor
	items  []T
}

func newPager[T any]() *Pager[T] {
	return &Pager[T]{cursor: store.NewCursor()}
}

// Items returns a snapshot of everything loaded so far.
func (p *Pager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]T(nil), p.items...)
}

// HasMore reports whether another page may exist.
func (p *Pager[T]) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor.HasMore()
}

func (p *Pager[T]) nextPage() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor.Page(), p.cursor.HasMore()
}

func (p *Pager[T]) append(items []T, hasNext bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, items...)
	p.cursor.Advance(hasNext)
}

func (p *Pager[T]) exhaust() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor.Exhaust()
}

// pageData is the generic page envelope shared by every feed listing.
type pageData[T any] struct {
	Items   []T  `json:"items"`
	HasPrev bool `json:"hasPrev"`
	HasNext bool `json:"hasNext"`
}

// Service exposes the feed surface: posts, comments, replies, likes and
// profile search. It shares the request gateway with the chat service, so
// feed calls participate in the same credential renewal protocol.
type Service struct {
	gw       *rest.Gateway
	logger   *zap.Logger
	pageSize int
}

// NewService wires the feed service.
func NewService(gw *rest.Gateway, logger *zap.Logger, pageSize int) *Service {
	return &Service{gw: gw, logger: logger, pageSize: pageSize}
}

// Posts starts a fresh pager over the home feed.
func (s *Service) Posts() *Pager[Post] { return newPager[Post]() }

// Comments starts a fresh pager over a post's comments.
func (s *Service) Comments() *Pager[Comment] { return newPager[Comment]() }

// Replies starts a fresh pager over a comment's replies.
func (s *Service) Replies() *Pager[Reply] { return newPager[Reply]() }

// Search starts a fresh pager over profile search results.
func (s *Service) Search() *Pager[Profile] { return newPager[Profile]() }

// LoadPosts fetches the pager's next feed page.
func (s *Service) LoadPosts(ctx context.Context, p *Pager[Post]) error {
	return loadPage(ctx, s, p, "/posts", nil)
}

// LoadComments fetches the next comment page for a post.
func (s *Service) LoadComments(ctx context.Context, p *Pager[Comment], postID string) error {
	return loadPage(ctx, s, p, "/posts/"+postID+"/comments", nil)
}

// LoadReplies fetches the next reply page for a comment.
func (s *Service) LoadReplies(ctx context.Context, p *Pager[Reply], commentID string) error {
	return loadPage(ctx, s, p, "/comments/"+commentID+"/replies", nil)
}

// LoadSearch fetches the next profile search page for a query string.
func (s *Service) LoadSearch(ctx context.Context, p *Pager[Profile], q string) error {
	extra := url.Values{}
	extra.Set("q", q)
	return loadPage(ctx, s, p, "/profiles/search", extra)
}

func loadPage[T any](ctx context.Context, s *Service, p *Pager[T], path string, extra url.Values) error {
	page, ok := p.nextPage()
	if !ok {
		return nil
	}

	query := url.Values{}
	for k, vs := range extra {
		query[k] = vs
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(s.pageSize))

	var data pageData[T]
	if err := s.gw.Get(ctx, path, query, &data); err != nil {
		if rest.IsTransport(err) {
			s.logger.Warn("feed page fetch failed, pagination stopped",
				zap.String("path", path), zap.Int("page", page), zap.Error(err))
			p.exhaust()
			return nil
		}
		return err
	}

	p.append(data.Items, data.HasNext)
	return nil
}

// GetPost fetches a single post.
func (s *Service) GetPost(ctx context.Context, postID string) (Post, error) {
	var post Post
	err := s.gw.Get(ctx, "/posts/"+postID, nil, &post)
	return post, err
}

// CreatePost publishes a new post.
func (s *Service) CreatePost(ctx context.Context, content, image string) (Post, error) {
	body := map[string]string{"content": content}
	if image != "" {
		body["image"] = image
	}
	var post Post
	err := s.gw.Post(ctx, "/posts", body, &post)
	return post, err
}

// DeletePost removes one of the viewer's posts.
func (s *Service) DeletePost(ctx context.Context, postID string) error {
	return s.gw.Delete(ctx, "/posts/"+postID, nil, nil)
}

// LikePost records the viewer's like.
func (s *Service) LikePost(ctx context.Context, postID string) error {
	return s.gw.Post(ctx, "/posts/"+postID+"/like", nil, nil)
}

// UnlikePost withdraws the viewer's like.
func (s *Service) UnlikePost(ctx context.Context, postID string) error {
	return s.gw.Delete(ctx, "/posts/"+postID+"/like", nil, nil)
}

// CreateComment adds a comment to a post.
func (s *Service) CreateComment(ctx context.Context, postID, content string) (Comment, error) {
	var comment Comment
	err := s.gw.Post(ctx, "/posts/"+postID+"/comments", map[string]string{"content": content}, &comment)
	return comment, err
}

// CreateReply adds a reply to a comment.
func (s *Service) CreateReply(ctx context.Context, commentID, content string) (Reply, error) {
	var reply Reply
	err := s.gw.Post(ctx, "/comments/"+commentID+"/replies", map[string]string{"content": content}, &reply)
	return reply, err
}
