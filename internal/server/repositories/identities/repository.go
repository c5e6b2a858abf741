// Package identities stores Identity records. Implementations return
// common.ErrorNotFound for missing rows and common.ErrAlreadyExists when a
// username or email address is already taken.
package identities

import (
	"context"

	"github.com/dmitrijs2005/khazana/internal/server/models"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
)

type Repository interface {
	// Create stores a new identity and fills in CreatedAt.
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)
	// GetByUsername returns the identity whether or not it is active.
	GetByUsername(ctx context.Context, username string) (*models.Identity, error)
	ExistsByUsernameOrEmail(ctx context.Context, username string, email *string) (bool, error)
	// List returns active identities ordered by username.
	List(ctx context.Context, filter models.IdentityFilter) ([]*models.Identity, error)
	SetScopes(ctx context.Context, id string, scopes scope.Set) error
	// CompletePasswordChange stores the new hash and email address and
	// clears the first-login flag.
	CompletePasswordChange(ctx context.Context, id, credentialHash, email string) error
	Deactivate(ctx context.Context, id string) error
}
