package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is one connection-like handle. *pgxpool.Conn, *pgxpool.Pool,
// *pgx.Conn and pgx.Tx all satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RowMapper decodes the current row into a typed record. It is the only place
// column order matters.
type RowMapper[T any] func(row pgx.CollectableRow) (T, error)

// Execute runs a statement that returns no rows and reports the command tag,
// e.g. "DELETE 1".
func Execute(ctx context.Context, q Querier, stmt string, args ...any) (string, error) {
	tag, err := q.Exec(ctx, stmt, args...)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

// FetchMany runs stmt and decodes every row. The result is never nil on success.
func FetchMany[T any](ctx context.Context, q Querier, stmt string, mapRow RowMapper[T], args ...any) ([]T, error) {
	rows, err := q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowToFunc[T](mapRow))
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// FetchOne runs stmt and decodes the first row. found is false, with a nil
// error, when nothing matched.
func FetchOne[T any](ctx context.Context, q Querier, stmt string, mapRow RowMapper[T], args ...any) (T, bool, error) {
	var zero T
	rows, err := q.Query(ctx, stmt, args...)
	if err != nil {
		return zero, false, err
	}
	out, err := pgx.CollectOneRow(rows, pgx.RowToFunc[T](mapRow))
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
