package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/khazana/internal/common"
)

const (
	msgInvalidCredentials = "Incorrect username or password."
	msgNotAuthenticated   = "Could not validate credentials."
	msgFirstLogin         = "Change the password before using this endpoint."
	msgForbidden          = "Not enough permissions."
	msgNotFound           = "Not found."
	msgAlreadyExists      = "Username or email address already in use."
	msgLocked             = "Too many failed login attempts. Try again later."
	msgInternal           = "Internal server error."
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// mapError translates a service error to a status code and the message put
// in the response body.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials
	case errors.Is(err, common.ErrTokenMalformed),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrUnauthenticated):
		return http.StatusUnauthorized, msgNotAuthenticated
	case errors.Is(err, common.ErrFirstLoginRequired):
		return http.StatusUnauthorized, msgFirstLogin
	case errors.Is(err, common.ErrScopeNotGranted):
		return http.StatusForbidden, msgForbidden
	case errors.Is(err, common.ErrPrivilegeEscalation):
		return http.StatusForbidden, "Cannot grant scopes the caller does not hold."
	case errors.Is(err, common.ErrAdminRequired):
		return http.StatusForbidden, "Admin access required."
	case errors.Is(err, common.ErrAdminProtected):
		return http.StatusForbidden, "The admin user cannot be modified this way."
	case errors.Is(err, common.ErrPasswordTooShort),
		errors.Is(err, common.ErrPasswordTooLong),
		errors.Is(err, common.ErrWeakPassword),
		errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrIncorrectPassword):
		return http.StatusBadRequest, "Incorrect password."
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, msgAlreadyExists
	case errors.Is(err, common.ErrAccountLocked):
		return http.StatusTooManyRequests, msgLocked
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := mapError(err)
	if status == http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeDetail(w, status, msg)
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Detail: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", common.ErrValidation)
	}
	return nil
}
