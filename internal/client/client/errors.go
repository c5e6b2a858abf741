package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRejected     = errors.New("request rejected")
	ErrLocked       = errors.New("account locked")
	ErrServer       = errors.New("server error")
)

// APIError carries the server's message next to the sentinel it maps to.
type APIError struct {
	Err    error
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *APIError) Unwrap() error {
	return e.Err
}
