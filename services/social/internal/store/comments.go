// Package store persists comments and reactions attached to content targets.
package store

import (
	"context"
	"time"
)

// Target identifies a content item. ContentID is only meaningful together
// with ContentType.
type Target struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
}

// Page is offset/limit pagination with SQL semantics: Limit must be positive
// to return anything. Callers normalize Limit before it reaches a store.
type Page struct {
	Limit  int
	Offset int
}

// Comment represents a single comment row.
type Comment struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ContentType string    `json:"content_type"`
	ContentID   string    `json:"content_id"`
	Content     string    `json:"content"`
	ParentID    *string   `json:"parent_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c Comment) Target() Target {
	return Target{ContentType: c.ContentType, ContentID: c.ContentID}
}

// NewComment is the input of CommentStore.Create. A nil ParentID makes a
// top-level comment.
type NewComment struct {
	UserID   string
	Target   Target
	Content  string
	ParentID *string
}

// ContentFilter selects comments of one target. Without IncludeReplies only
// top-level comments match; with it every comment of the target is returned
// as one flat newest-first list.
type ContentFilter struct {
	Target         Target
	Page           Page
	IncludeReplies bool
}

// CommentStore defines the contract for comment persistence.
// Absent rows are reported through the bool results, never as errors.
type CommentStore interface {
	Create(ctx context.Context, in NewComment) (Comment, error)
	GetByID(ctx context.Context, id string) (Comment, bool, error)
	Update(ctx context.Context, id, content string) (Comment, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	ListForContent(ctx context.Context, f ContentFilter) ([]Comment, error)
	Replies(ctx context.Context, parentID string) ([]Comment, error)
	ListByUser(ctx context.Context, userID string, p Page) ([]Comment, error)
	Count(ctx context.Context, t Target) (int64, error)
}
