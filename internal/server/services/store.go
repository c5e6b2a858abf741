package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/khazana/internal/dbx"
	"github.com/dmitrijs2005/khazana/internal/server/repositories/identities"
	"github.com/dmitrijs2005/khazana/internal/server/repositories/repomanager"
)

// Store hands out identity repositories, optionally scoped to a transaction
// so that a lookup and the mutation that depends on it commit together.
type Store interface {
	Identities() identities.Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo identities.Repository) error) error
}

// txAttempts bounds how often a conflicting transaction is re-run.
const txAttempts = 3

// SQLStore is a Store over PostgreSQL. Transactions run serializable so that
// a guard decision and the write it allows see the same row.
type SQLStore struct {
	db      *sql.DB
	manager repomanager.RepositoryManager
}

func NewSQLStore(db *sql.DB, manager repomanager.RepositoryManager) *SQLStore {
	return &SQLStore{db: db, manager: manager}
}

func (s *SQLStore) Identities() identities.Repository {
	return s.manager.Identities(s.db)
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo identities.Repository) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	policy := dbx.RetryPolicy{Attempts: txAttempts, Retryable: s.manager.Retryable}
	return dbx.WithTxRetry(ctx, s.db, opts, policy, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, s.manager.Identities(tx))
	})
}

// MemoryStore is a Store over an in-process repository. Each repository call
// is atomic on its own; WithinTx does not add isolation across calls.
type MemoryStore struct {
	repo *identities.MemoryRepository
}

func NewMemoryStore(repo *identities.MemoryRepository) *MemoryStore {
	return &MemoryStore{repo: repo}
}

func (s *MemoryStore) Identities() identities.Repository {
	return s.repo
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo identities.Repository) error) error {
	return fn(ctx, s.repo)
}
