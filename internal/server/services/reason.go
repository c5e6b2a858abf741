package services

import (
	"errors"

	"github.com/dmitrijs2005/khazana/internal/common"
)

var reasons = []struct {
	err    error
	reason string
}{
	{common.ErrInvalidCredentials, "invalid_credentials"},
	{common.ErrAccountLocked, "account_locked"},
	{common.ErrScopeNotGranted, "scope_not_granted"},
	{common.ErrTokenMalformed, "token_malformed"},
	{common.ErrTokenExpired, "token_expired"},
	{common.ErrUnauthenticated, "unauthenticated"},
	{common.ErrFirstLoginRequired, "first_login_required"},
	{common.ErrPrivilegeEscalation, "privilege_escalation"},
	{common.ErrAdminRequired, "admin_required"},
	{common.ErrAdminProtected, "admin_protected"},
	{common.ErrPasswordTooShort, "password_too_short"},
	{common.ErrPasswordTooLong, "password_too_long"},
	{common.ErrWeakPassword, "weak_password"},
	{common.ErrIncorrectPassword, "incorrect_password"},
	{common.ErrValidation, "validation"},
	{common.ErrorNotFound, "not_found"},
	{common.ErrAlreadyExists, "already_exists"},
}

// Reason returns a stable, low-cardinality label for err, suitable for
// metrics and logs. Unrecognised errors are "internal".
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}
