// Package dbx holds the database plumbing shared by the repositories: the
// handle type they bind to, and the transaction wrapper services use for
// multi-row units of work.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the query surface the repositories need. Both *sql.DB and
// *sql.Tx provide it, so the same repository code runs standalone or
// inside a transaction opened by WithTx — the repomanager just rebinds.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction at the database's default isolation
// level: commit when fn returns nil, roll back when it returns an error or
// panics (the panic is rethrown). The approval workflow uses it to keep
// the status change, the technician row, and the application link atomic.
func WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
