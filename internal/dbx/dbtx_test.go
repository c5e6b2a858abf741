package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:dbx_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY, v TEXT);`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db), "must commit on success")
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('fail')`)
		require.NoError(t, e)
		return errors.New("boom")
	})
	require.Error(t, err)

	require.Equal(t, 0, countRows(t, db), "must rollback when fn returns error")
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countRows(t, db), "must rollback on panic")
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err, "begin should fail when DB is closed")
}

func TestWithTx_ReadOnlyOptionsArePassed(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(`INSERT INTO t(v) VALUES ('seed')`)
	require.NoError(t, err)

	var got string
	err = WithTx(context.Background(), db, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx DBTX) error {
		return tx.QueryRowContext(ctx, `SELECT v FROM t LIMIT 1`).Scan(&got)
	})
	require.NoError(t, err)
	require.Equal(t, "seed", got)
}

var errConflict = errors.New("conflict")

func isConflict(err error) bool { return errors.Is(err, errConflict) }

func TestWithTxRetry(t *testing.T) {
	tests := []struct {
		name      string
		policy    RetryPolicy
		failures  int
		fnErr     error
		wantCalls int
		wantRows  int
		wantErr   error
	}{
		{name: "succeeds after conflicts", policy: RetryPolicy{Attempts: 3, Retryable: isConflict}, failures: 2, wantCalls: 3, wantRows: 1},
		{name: "gives up", policy: RetryPolicy{Attempts: 2, Retryable: isConflict}, failures: 5, wantCalls: 2, wantErr: errConflict},
		{name: "permanent error is not retried", policy: RetryPolicy{Attempts: 3, Retryable: isConflict}, fnErr: sql.ErrNoRows, wantCalls: 1, wantErr: sql.ErrNoRows},
		{name: "nil retryable runs once", policy: RetryPolicy{Attempts: 3}, failures: 1, wantCalls: 1, wantErr: errConflict},
		{name: "zero attempts runs once", policy: RetryPolicy{Retryable: isConflict}, wantCalls: 1, wantRows: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupDB(t)
			_, err := db.Exec(`DELETE FROM t`)
			require.NoError(t, err)

			calls := 0
			err = WithTxRetry(context.Background(), db, nil, tt.policy, func(ctx context.Context, tx DBTX) error {
				calls++
				if _, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('retry')`); err != nil {
					return err
				}
				if tt.fnErr != nil {
					return tt.fnErr
				}
				if calls <= tt.failures {
					return errConflict
				}
				return nil
			})

			require.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantRows, countRows(t, db), "failed attempts must leave no rows behind")
		})
	}
}

func TestWithTxRetry_StopsWhenContextDone(t *testing.T) {
	db := setupDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := WithTxRetry(ctx, db, nil, RetryPolicy{Attempts: 5, Retryable: isConflict}, func(ctx context.Context, tx DBTX) error {
		calls++
		cancel()
		return errConflict
	})
	require.ErrorIs(t, err, errConflict)
	require.Equal(t, 1, calls)
}
