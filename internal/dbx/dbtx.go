// Package dbx provides the database plumbing shared by repositories: the DBTX
// interface satisfied by both *sql.DB and *sql.Tx, a transaction helper, and
// a serialized writer for single-writer engines such as SQLite.
package dbx

import (
	"context"
	"database/sql"
	"sync"
)

// DBTX is the subset of database/sql used by repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back on error or panic. Panics are rethrown after rollback.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
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

// Writer serializes read-modify-write units against one database. Each call
// to Update holds the lock for the whole transaction, so a lookup followed by
// a write inside fn cannot interleave with another Update.
type Writer struct {
	db *sql.DB
	mu sync.Mutex
}

// NewWriter wraps db.
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// Update runs fn in a serialized transaction.
func (w *Writer) Update(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WithTx(ctx, w.db, nil, fn)
}

// DB returns the underlying handle for read-only queries.
func (w *Writer) DB() *sql.DB {
	return w.db
}
