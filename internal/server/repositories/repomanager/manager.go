package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/khazana/internal/dbx"
	"github.com/dmitrijs2005/khazana/internal/server/repositories/identities"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Identities(db dbx.DBTX) identities.Repository
	// Retryable reports whether a failed transaction may succeed when run again.
	Retryable(err error) bool
}
