package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/storycraft/social-interaction/internal/platform/db"
)

const reactionColumns = `id::text, user_id::text, content_type, content_id::text, reaction_type, created_at`

const (
	insertReaction = `INSERT INTO reactions (user_id, content_type, content_id, reaction_type)
	           VALUES ($1, $2, $3, $4)
	           RETURNING ` + reactionColumns

	deleteReaction = `DELETE FROM reactions
	           WHERE user_id = $1 AND content_type = $2 AND content_id = $3 AND reaction_type = $4
	           RETURNING id::text`

	selectReaction = `SELECT ` + reactionColumns + `
	           FROM reactions
	           WHERE user_id = $1 AND content_type = $2 AND content_id = $3 AND reaction_type = $4`

	countReactions = `SELECT COUNT(*) FROM reactions
	           WHERE content_type = $1 AND content_id = $2 AND reaction_type = $3`

	selectUserReactions = `SELECT ` + reactionColumns + `
	           FROM reactions
	           WHERE user_id = $1
	           ORDER BY created_at DESC, id DESC`

	selectUserReactionsByType = `SELECT ` + reactionColumns + `
	           FROM reactions
	           WHERE user_id = $1 AND reaction_type = $2
	           ORDER BY created_at DESC, id DESC`
)

func scanReaction(row pgx.CollectableRow) (Reaction, error) {
	var r Reaction
	err := row.Scan(&r.ID, &r.UserID, &r.ContentType, &r.ContentID, &r.ReactionType, &r.CreatedAt)
	return r, err
}

func keyArgs(k ReactionKey) []any {
	return []any{k.UserID, k.Target.ContentType, k.Target.ContentID, k.ReactionType}
}

// ReactionRepository runs reaction queries on one connection. Create relies
// on a failed statement leaving the connection usable, so q must not be a
// transaction.
type ReactionRepository struct {
	q db.Querier
}

func NewReactionRepository(q db.Querier) *ReactionRepository {
	return &ReactionRepository{q: q}
}

// Create inserts the reaction. A unique violation means the row already
// exists; the existing row is returned with created=false. If that row is
// deleted before it can be read the insert is tried once more.
func (r *ReactionRepository) Create(ctx context.Context, k ReactionKey) (Reaction, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		rec, _, err := db.FetchOne(ctx, r.q, insertReaction, scanReaction, keyArgs(k)...)
		if err == nil {
			return rec, true, nil
		}
		if !db.IsUniqueViolation(err) {
			return Reaction{}, false, err
		}
		existing, found, err := r.Get(ctx, k)
		if err != nil {
			return Reaction{}, false, err
		}
		if found {
			return existing, false, nil
		}
	}
	return Reaction{}, false, ErrReactionConflict
}

func (r *ReactionRepository) Delete(ctx context.Context, k ReactionKey) (bool, error) {
	_, found, err := db.FetchOne(ctx, r.q, deleteReaction, scanID, keyArgs(k)...)
	return found, err
}

func (r *ReactionRepository) Get(ctx context.Context, k ReactionKey) (Reaction, bool, error) {
	return db.FetchOne(ctx, r.q, selectReaction, scanReaction, keyArgs(k)...)
}

func (r *ReactionRepository) Count(ctx context.Context, t Target, reactionType string) (int64, error) {
	n, _, err := db.FetchOne(ctx, r.q, countReactions, scanCount, t.ContentType, t.ContentID, reactionType)
	return n, err
}

func (r *ReactionRepository) ListByUser(ctx context.Context, userID, reactionType string) ([]Reaction, error) {
	if reactionType == "" {
		return db.FetchMany(ctx, r.q, selectUserReactions, scanReaction, userID)
	}
	return db.FetchMany(ctx, r.q, selectUserReactionsByType, scanReaction, userID, reactionType)
}

// PostgresReactionStore persists reactions in Postgres.
type PostgresReactionStore struct {
	pool Acquirer
}

func NewPostgresReactionStore(pool Acquirer) *PostgresReactionStore {
	return &PostgresReactionStore{pool: pool}
}

func (s *PostgresReactionStore) Create(ctx context.Context, k ReactionKey) (out Reaction, created bool, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		out, created, qerr = NewReactionRepository(q).Create(ctx, k)
		return qerr
	})
	return out, created, err
}

func (s *PostgresReactionStore) Delete(ctx context.Context, k ReactionKey) (deleted bool, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		deleted, qerr = NewReactionRepository(q).Delete(ctx, k)
		return qerr
	})
	return deleted, err
}

func (s *PostgresReactionStore) Get(ctx context.Context, k ReactionKey) (out Reaction, found bool, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		out, found, qerr = NewReactionRepository(q).Get(ctx, k)
		return qerr
	})
	return out, found, err
}

func (s *PostgresReactionStore) Count(ctx context.Context, t Target, reactionType string) (n int64, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		n, qerr = NewReactionRepository(q).Count(ctx, t, reactionType)
		return qerr
	})
	return n, err
}

func (s *PostgresReactionStore) ListByUser(ctx context.Context, userID, reactionType string) (out []Reaction, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		out, qerr = NewReactionRepository(q).ListByUser(ctx, userID, reactionType)
		return qerr
	})
	return out, err
}
