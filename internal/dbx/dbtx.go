// Package dbx provides small database/sql helpers shared by the identity
// repositories: a minimal interface (DBTX) satisfied by both *sql.DB and
// *sql.Tx, and helpers that run a function inside a transaction, optionally
// re-running it when the database reports a transient conflict.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    // read the identity and write its new scopes through tx
//	    _, err := tx.ExecContext(ctx, "UPDATE identities SET ...")
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

// RetryPolicy controls WithTxRetry. Attempts below one mean a single attempt;
// a nil Retryable never retries.
type RetryPolicy struct {
	Attempts  int
	Retryable func(error) bool
}

// WithTxRetry runs fn through WithTx and starts a fresh transaction while
// the policy reports the failure as retryable. fn may run more than once, so
// it must only touch state through tx or overwrite its outputs.
func WithTxRetry(ctx context.Context, db *sql.DB, opts *sql.TxOptions, policy RetryPolicy, fn func(ctx context.Context, tx DBTX) error) error {
	attempts := max(policy.Attempts, 1)

	var err error
	for i := 0; i < attempts; i++ {
		err = WithTx(ctx, db, opts, fn)
		if err == nil || policy.Retryable == nil || !policy.Retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", attempts, err)
}
