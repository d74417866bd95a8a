// Package store contains the SQL queries behind every resource. Functions that
// take a Querier can run either directly on the database or inside a caller's
// transaction; missing rows are reported as a nil result, not an error.
package store

import (
	"context"
	"database/sql"
	"errors"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrInsufficientQuantity is returned when a decrement would take an item's
// quantity below zero.
var ErrInsufficientQuantity = errors.New("insufficient quantity")

// WithTx runs fn inside a transaction, committing if fn returns nil.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
