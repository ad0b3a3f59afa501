package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the query surface shared by *pgxpool.Pool, pgx.Tx, and the
// pgxmock pool used in tests. Repositories only ever touch this.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxDB additionally opens transactions. Services hold a TxDB when a
// mutation needs a read-check-write unit; everything inside the
// transaction goes through repositories rebound with WithTx.
type TxDB interface {
	DB
	Begin(ctx context.Context) (pgx.Tx, error)
}
