package auth

import (
	"fmt"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/server/models"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
)

// CheckCreate allows an admin actor to grant anything; anyone else may only
// hand out scopes it holds itself.
func CheckCreate(actor scope.Set, requested scope.Set) error {
	if actor.Has(scope.Admin) || requested.SubsetOf(actor) {
		return nil
	}
	return fmt.Errorf("%w: You can not provide scopes that you don't have. Please contact admin.", common.ErrPrivilegeEscalation)
}

// CheckUpdate guards scope updates. The admin identity can never lose the
// admin scope, whoever asks; otherwise scope updates are admin-only.
func CheckUpdate(actor scope.Set, target *models.Identity, newScopes scope.Set) error {
	if target.IsBootstrapAdmin() && !newScopes.Has(scope.Admin) {
		return fmt.Errorf("%w: the admin identity must keep the admin scope", common.ErrAdminProtected)
	}
	if !actor.Has(scope.Admin) {
		return fmt.Errorf("%w: only admins can change scopes", common.ErrAdminRequired)
	}
	return nil
}

// CheckDelete guards soft deletion. The admin identity is never deletable.
func CheckDelete(actor scope.Set, target *models.Identity) error {
	if target.IsBootstrapAdmin() {
		return fmt.Errorf("%w: the admin identity cannot be deleted", common.ErrAdminProtected)
	}
	if !actor.Has(scope.Admin) {
		return fmt.Errorf("%w: only admins can delete identities", common.ErrAdminRequired)
	}
	return nil
}
