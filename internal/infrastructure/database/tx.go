package database

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the subset of database/sql methods shared by *sql.DB, *sql.Tx and
// *DB. Repositories accept a DBTX so callers can run several repository
// operations inside one transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// WithTx runs fn inside a transaction, committing on nil return and rolling
// back on error or panic.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - fn: Function receiving the transaction; its error decides the outcome
//
// Returns:
//   - error: fn's error, or a commit/begin failure
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback() //nolint:errcheck // Best effort before re-panicking
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback() //nolint:errcheck // Original error takes precedence
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
