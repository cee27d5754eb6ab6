package store

import (
	"context"
	"errors"
	"time"
)

// Reaction is a typed user action on a target, unique per
// (user, target, reaction type). Reactions are never updated.
type Reaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ContentType  string    `json:"content_type"`
	ContentID    string    `json:"content_id"`
	ReactionType string    `json:"reaction_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReactionKey is the uniqueness tuple of a reaction.
type ReactionKey struct {
	UserID       string
	Target       Target
	ReactionType string
}

// ErrReactionConflict is returned when a create keeps colliding with a row
// that disappears before it can be read back.
var ErrReactionConflict = errors.New("reaction create conflicted with a concurrent delete")

// ReactionStore defines the contract for reaction persistence.
// Create is idempotent: created reports whether this call inserted the row.
type ReactionStore interface {
	Create(ctx context.Context, k ReactionKey) (r Reaction, created bool, err error)
	Delete(ctx context.Context, k ReactionKey) (bool, error)
	Get(ctx context.Context, k ReactionKey) (Reaction, bool, error)
	Count(ctx context.Context, t Target, reactionType string) (int64, error)
	// ListByUser returns the user's reactions newest first. An empty
	// reactionType disables the type filter.
	ListByUser(ctx context.Context, userID, reactionType string) ([]Reaction, error)
}
