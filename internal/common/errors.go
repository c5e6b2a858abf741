// Package common defines shared constants and sentinel errors used across
// the server, its transports and the CLI client. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
	ErrValidation = errors.New("validation error")

	// Credential exchange errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrIncorrectPassword  = errors.New("incorrect password")

	// Token lifecycle errors.
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")

	// Authorization gate errors.
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrFirstLoginRequired = errors.New("password change required before using this operation")
	ErrScopeNotGranted    = errors.New("scope not granted")

	// Privilege guard errors.
	ErrPrivilegeEscalation = errors.New("privilege escalation")
	ErrAdminRequired       = errors.New("admin scope required")
	ErrAdminProtected      = errors.New("admin identity is protected")

	// Password policy errors.
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("password too weak")
)
