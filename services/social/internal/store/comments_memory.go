package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	_ CommentStore  = (*PostgresCommentStore)(nil)
	_ CommentStore  = (*InMemoryCommentStore)(nil)
	_ ReactionStore = (*PostgresReactionStore)(nil)
	_ ReactionStore = (*InMemoryReactionStore)(nil)
)

type memComment struct {
	Comment
	seq uint64
}

// InMemoryCommentStore is a development-only in-memory implementation with
// the same ordering and cascade behaviour as the Postgres schema.
type InMemoryCommentStore struct {
	mu       sync.RWMutex
	seq      uint64
	comments map[string]memComment
	now      func() time.Time
}

func NewInMemoryCommentStore() *InMemoryCommentStore {
	return &InMemoryCommentStore{
		comments: make(map[string]memComment),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *InMemoryCommentStore) Create(_ context.Context, in NewComment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := Comment{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		ContentType: in.Target.ContentType,
		ContentID:   in.Target.ContentID,
		Content:     in.Content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.ParentID != nil {
		pid := *in.ParentID
		c.ParentID = &pid
	}
	s.seq++
	s.comments[c.ID] = memComment{Comment: c, seq: s.seq}
	return copyComment(c), nil
}

func (s *InMemoryCommentStore) GetByID(_ context.Context, id string) (Comment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return Comment{}, false, nil
	}
	return copyComment(c.Comment), true, nil
}

func (s *InMemoryCommentStore) Update(_ context.Context, id, content string) (Comment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return Comment{}, false, nil
	}
	now := s.now()
	if !now.After(c.UpdatedAt) {
		now = c.UpdatedAt.Add(time.Microsecond)
	}
	c.Content = content
	c.UpdatedAt = now
	s.comments[id] = c
	return copyComment(c.Comment), true, nil
}

// Delete removes the comment and, like ON DELETE CASCADE, all its descendants.
func (s *InMemoryCommentStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return false, nil
	}
	doomed := []string{id}
	for len(doomed) > 0 {
		cur := doomed[0]
		doomed = doomed[1:]
		delete(s.comments, cur)
		for cid, c := range s.comments {
			if c.ParentID != nil && *c.ParentID == cur {
				doomed = append(doomed, cid)
			}
		}
	}
	return true, nil
}

func (s *InMemoryCommentStore) ListForContent(_ context.Context, f ContentFilter) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c memComment) bool {
		return c.ContentType == f.Target.ContentType &&
			c.ContentID == f.Target.ContentID &&
			(f.IncludeReplies || c.ParentID == nil)
	}, true).paginate(f.Page), nil
}

func (s *InMemoryCommentStore) Replies(_ context.Context, parentID string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c memComment) bool {
		return c.ParentID != nil && *c.ParentID == parentID
	}, false).all(), nil
}

func (s *InMemoryCommentStore) ListByUser(_ context.Context, userID string, p Page) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c memComment) bool { return c.UserID == userID }, true).paginate(p), nil
}

func (s *InMemoryCommentStore) Count(_ context.Context, t Target) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, c := range s.comments {
		if c.ContentType == t.ContentType && c.ContentID == t.ContentID {
			n++
		}
	}
	return n, nil
}

type memHits []memComment

// collect filters and orders by (created_at, insertion order). Callers hold
// s.mu.
func (s *InMemoryCommentStore) collect(match func(memComment) bool, newestFirst bool) memHits {
	var hits memHits
	for _, c := range s.comments {
		if match(c) {
			hits = append(hits, c)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if newestFirst {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if newestFirst {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})
	return hits
}

// paginate applies LIMIT/OFFSET the way Postgres does: a Limit of zero or
// less yields no rows.
func (h memHits) paginate(p Page) []Comment {
	start := min(max(p.Offset, 0), len(h))
	end := start + min(max(p.Limit, 0), len(h)-start)
	return h[start:end].all()
}

func (h memHits) all() []Comment {
	out := make([]Comment, 0, len(h))
	for _, c := range h {
		out = append(out, copyComment(c.Comment))
	}
	return out
}

func copyComment(c Comment) Comment {
	if c.ParentID != nil {
		pid := *c.ParentID
		c.ParentID = &pid
	}
	return c
}
