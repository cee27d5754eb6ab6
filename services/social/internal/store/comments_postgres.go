package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/storycraft/social-interaction/internal/platform/db"
)

const commentColumns = `id::text, user_id::text, content_type, content_id::text, content,
	parent_id::text, created_at, updated_at`

const (
	insertComment = `INSERT INTO comments (user_id, content_type, content_id, content, parent_id)
	           VALUES ($1, $2, $3, $4, $5)
	           RETURNING ` + commentColumns

	selectCommentByID = `SELECT ` + commentColumns + `
	           FROM comments
	           WHERE id = $1`

	updateComment = `UPDATE comments SET content = $1, updated_at = now()
	           WHERE id = $2
	           RETURNING ` + commentColumns

	deleteComment = `DELETE FROM comments WHERE id = $1 RETURNING id::text`

	selectCommentsForContent = `SELECT ` + commentColumns + `
	           FROM comments
	           WHERE content_type = $1 AND content_id = $2
	           ORDER BY created_at DESC, id DESC
	           LIMIT $3 OFFSET $4`

	selectTopLevelCommentsForContent = `SELECT ` + commentColumns + `
	           FROM comments
	           WHERE content_type = $1 AND content_id = $2 AND parent_id IS NULL
	           ORDER BY created_at DESC, id DESC
	           LIMIT $3 OFFSET $4`

	selectReplies = `SELECT ` + commentColumns + `
	           FROM comments
	           WHERE parent_id = $1
	           ORDER BY created_at ASC, id ASC`

	selectUserComments = `SELECT ` + commentColumns + `
	           FROM comments
	           WHERE user_id = $1
	           ORDER BY created_at DESC, id DESC
	           LIMIT $2 OFFSET $3`

	countComments = `SELECT COUNT(*) FROM comments WHERE content_type = $1 AND content_id = $2`
)

func scanComment(row pgx.CollectableRow) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.UserID, &c.ContentType, &c.ContentID, &c.Content,
		&c.ParentID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanID(row pgx.CollectableRow) (string, error) {
	var id string
	err := row.Scan(&id)
	return id, err
}

func scanCount(row pgx.CollectableRow) (int64, error) {
	var n int64
	err := row.Scan(&n)
	return n, err
}

// CommentRepository runs single-statement comment queries on one connection.
type CommentRepository struct {
	q db.Querier
}

func NewCommentRepository(q db.Querier) *CommentRepository {
	return &CommentRepository{q: q}
}

func (r *CommentRepository) Create(ctx context.Context, in NewComment) (Comment, error) {
	c, _, err := db.FetchOne(ctx, r.q, insertComment, scanComment,
		in.UserID, in.Target.ContentType, in.Target.ContentID, in.Content, in.ParentID)
	return c, err
}

func (r *CommentRepository) GetByID(ctx context.Context, id string) (Comment, bool, error) {
	return db.FetchOne(ctx, r.q, selectCommentByID, scanComment, id)
}

func (r *CommentRepository) Update(ctx context.Context, id, content string) (Comment, bool, error) {
	return db.FetchOne(ctx, r.q, updateComment, scanComment, content, id)
}

func (r *CommentRepository) Delete(ctx context.Context, id string) (bool, error) {
	_, found, err := db.FetchOne(ctx, r.q, deleteComment, scanID, id)
	return found, err
}

func (r *CommentRepository) ListForContent(ctx context.Context, f ContentFilter) ([]Comment, error) {
	stmt := selectTopLevelCommentsForContent
	if f.IncludeReplies {
		stmt = selectCommentsForContent
	}
	return db.FetchMany(ctx, r.q, stmt, scanComment,
		f.Target.ContentType, f.Target.ContentID, f.Page.Limit, f.Page.Offset)
}

func (r *CommentRepository) Replies(ctx context.Context, parentID string) ([]Comment, error) {
	return db.FetchMany(ctx, r.q, selectReplies, scanComment, parentID)
}

func (r *CommentRepository) ListByUser(ctx context.Context, userID string, p Page) ([]Comment, error) {
	return db.FetchMany(ctx, r.q, selectUserComments, scanComment, userID, p.Limit, p.Offset)
}

func (r *CommentRepository) Count(ctx context.Context, t Target) (int64, error) {
	n, _, err := db.FetchOne(ctx, r.q, countComments, scanCount, t.ContentType, t.ContentID)
	return n, err
}

// Acquirer hands out one scoped connection per call. *db.Pool implements it.
type Acquirer interface {
	Acquire(ctx context.Context, fn func(db.Querier) error) error
}

// PostgresCommentStore persists comments in Postgres, checking out one pooled
// connection per operation.
type PostgresCommentStore struct {
	pool Acquirer
}

// NewPostgresCommentStore creates a store backed by Postgres.
func NewPostgresCommentStore(pool Acquirer) *PostgresCommentStore {
	return &PostgresCommentStore{pool: pool}
}

func (s *PostgresCommentStore) Create(ctx context.Context, in NewComment) (out Comment, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var cerr error
		out, cerr = NewCommentRepository(q).Create(ctx, in)
		return cerr
	})
	return out, err
}

func (s *PostgresCommentStore) GetByID(ctx context.Context, id string) (out Comment, found bool, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		out, found, qerr = NewCommentRepository(q).GetByID(ctx, id)
		return qerr
	})
	return out, found, err
}

func (s *PostgresCommentStore) Update(ctx context.Context, id, content string) (out Comment, found bool, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		out, found, qerr = NewCommentRepository(q).Update(ctx, id, content)
		return qerr
	})
	return out, found, err
}

func (s *PostgresCommentStore) Delete(ctx context.Context, id string) (deleted bool, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		deleted, qerr = NewCommentRepository(q).Delete(ctx, id)
		return qerr
	})
	return deleted, err
}

func (s *PostgresCommentStore) ListForContent(ctx context.Context, f ContentFilter) (out []Comment, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		out, qerr = NewCommentRepository(q).ListForContent(ctx, f)
		return qerr
	})
	return out, err
}

func (s *PostgresCommentStore) Replies(ctx context.Context, parentID string) (out []Comment, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		out, qerr = NewCommentRepository(q).Replies(ctx, parentID)
		return qerr
	})
	return out, err
}

func (s *PostgresCommentStore) ListByUser(ctx context.Context, userID string, p Page) (out []Comment, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		out, qerr = NewCommentRepository(q).ListByUser(ctx, userID, p)
		return qerr
	})
	return out, err
}

func (s *PostgresCommentStore) Count(ctx context.Context, t Target) (n int64, err error) {
	err = s.pool.Acquire(ctx, func(q db.Querier) error {
		var qerr error
		n, qerr = NewCommentRepository(q).Count(ctx, t)
		return qerr
	})
	return n, err
}
