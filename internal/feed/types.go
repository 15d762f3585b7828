package feed

import (
	"time"

	"github.com/tmendonca/loop/internal/store"
)

// Post is one feed entry.
type Post struct {
	ID           string                 `json:"id"`
	Author       store.ProfileReference `json:"author"`
	Content      string                 `json:"content"`
	Image        string                 `json:"image"`
	Likes        []string               `json:"likes"`
	CommentCount int                    `json:"commentCount"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// LikedBy reports whether userID has liked the post.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment is a top-level comment on a post.
type Comment struct {
	ID         string                 `json:"id"`
	PostID     string                 `json:"postId"`
	Author     store.ProfileReference `json:"author"`
	Content    string                 `json:"content"`
	ReplyCount int                    `json:"replyCount"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// Reply is a nested reply to a comment.
type Reply struct {
	ID        string                 `json:"id"`
	CommentID string                 `json:"commentId"`
	Author    store.ProfileReference `json:"author"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Profile is a search result entry.
type Profile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
	Bio        string `json:"bio"`
}
