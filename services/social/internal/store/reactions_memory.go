package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memReaction struct {
	Reaction
	seq uint64
}

// InMemoryReactionStore is a development-only in-memory implementation.
type InMemoryReactionStore struct {
	mu        sync.RWMutex
	seq       uint64
	reactions map[ReactionKey]memReaction
}

func NewInMemoryReactionStore() *InMemoryReactionStore {
	return &InMemoryReactionStore{reactions: make(map[ReactionKey]memReaction)}
}

func (s *InMemoryReactionStore) Create(_ context.Context, k ReactionKey) (Reaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reactions[k]; ok {
		return r.Reaction, false, nil
	}
	r := Reaction{
		ID:           uuid.NewString(),
		UserID:       k.UserID,
		ContentType:  k.Target.ContentType,
		ContentID:    k.Target.ContentID,
		ReactionType: k.ReactionType,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	s.seq++
	s.reactions[k] = memReaction{Reaction: r, seq: s.seq}
	return r, true, nil
}

func (s *InMemoryReactionStore) Delete(_ context.Context, k ReactionKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reactions[k]; !ok {
		return false, nil
	}
	delete(s.reactions, k)
	return true, nil
}

func (s *InMemoryReactionStore) Get(_ context.Context, k ReactionKey) (Reaction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reactions[k]
	return r.Reaction, ok, nil
}

func (s *InMemoryReactionStore) Count(_ context.Context, t Target, reactionType string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for k := range s.reactions {
		if k.Target == t && k.ReactionType == reactionType {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryReactionStore) ListByUser(_ context.Context, userID, reactionType string) ([]Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []memReaction
	for k, r := range s.reactions {
		if k.UserID == userID && (reactionType == "" || k.ReactionType == reactionType) {
			hits = append(hits, r)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return hits[i].seq > hits[j].seq
	})
	out := make([]Reaction, 0, len(hits))
	for _, r := range hits {
		out = append(out, r.Reaction)
	}
	return out, nil
}
