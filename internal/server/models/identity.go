package models

import (
	"time"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
)

// Identity is an account that can exchange credentials for tokens.
// CredentialHash must never leave the server.
type Identity struct {
	ID             string
	Username       string
	EmailAddress   *string
	CredentialHash string
	Scopes         scope.Set
	FirstLogin     bool
	CreatedBy      *string
	Active         bool
	CreatedAt      time.Time
}

func (i *Identity) IsAdmin() bool {
	return i.Scopes.Has(scope.Admin)
}

// IsBootstrapAdmin reports whether this is the reserved "admin" identity.
func (i *Identity) IsBootstrapAdmin() bool {
	return i.Username == common.AdminUsername
}

// IdentityView is the client-facing projection of an Identity.
type IdentityView struct {
	Username     string   `json:"username"`
	EmailAddress *string  `json:"emailAddress"`
	Scopes       []string `json:"scopes"`
	FirstLogin   bool     `json:"firstLogin"`
}

func (i *Identity) View() IdentityView {
	return IdentityView{
		Username:     i.Username,
		EmailAddress: i.EmailAddress,
		Scopes:       i.Scopes.Strings(),
		FirstLogin:   i.FirstLogin,
	}
}

// IdentityFilter narrows List results. Inactive identities are never listed.
type IdentityFilter struct {
	ExcludeUsernames []string
	// CreatedBy restricts results to identities created by this id when set.
	CreatedBy *string
}
