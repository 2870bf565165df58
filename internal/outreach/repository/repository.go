// Package repository persists the outreach aggregates: runs, jobs, leads,
// messages, sessions, anomalies, replies, and sourcing records. Raw SQL over
// pgx; no business rules beyond conditional state transitions.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStaleTransition is returned when a conditional status update matched no
// row, meaning another writer moved the aggregate first.
var ErrStaleTransition = errors.New("stale state transition")

// DB is the slice of the pgx pool the repository uses. *pgxpool.Pool
// satisfies it; tests substitute a mock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type Repository struct {
	pool DB
}

func New(pool DB) *Repository {
	return &Repository{pool: pool}
}

// IsUniqueViolation reports whether the error is a Postgres unique
// constraint violation. Callers use it to map index-enforced invariants,
// such as the single open run per experiment, to conflict errors.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
