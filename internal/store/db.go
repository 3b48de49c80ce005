package store

import (
	"context"
	"database/sql"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is satisfied by both *sqlx.DB and *sqlx.Tx. Every store method that may
// run inside a business transaction takes one explicitly; sqlite only has a
// single connection, so reading through the pool while a tx is open blocks.
type DB interface {
	Execer
	Getter
	Selecter
}
