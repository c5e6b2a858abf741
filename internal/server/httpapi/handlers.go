package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/server/models"
	"github.com/dmitrijs2005/khazana/internal/server/services"
)

type tokenResponse struct {
	AccessToken             string   `json:"access_token"`
	TokenType               string   `json:"token_type"`
	Scopes                  []string `json:"scopes"`
	FirstLogin              bool     `json:"firstLogin"`
	PasswordPolicyViolation bool     `json:"passwordPolicyViolation"`
}

type createUserRequest struct {
	Username     string   `json:"username"`
	Password     string   `json:"password"`
	EmailAddress *string  `json:"emailAddress"`
	Scopes       []string `json:"scopes"`
}

type updateUserRequest struct {
	Username string   `json:"username"`
	Scopes   []string `json:"scopes"`
}

type changePasswordRequest struct {
	OldPassword  string `json:"oldPassword"`
	NewPassword  string `json:"newPassword"`
	EmailAddress string `json:"emailAddress"`
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// issueToken handles the OAuth2 password form: username, password and an
// optional space separated scope list.
func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, common.ErrInvalidCredentials)
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		h.writeError(w, r, common.ErrInvalidCredentials)
		return
	}

	result, err := h.service.IssueToken(r.Context(), services.ExchangeRequest{
		Username: username,
		Password: password,
		Scopes:   strings.Fields(r.PostForm.Get("scope")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:             result.Token.Raw,
		TokenType:               common.BearerTokenType,
		Scopes:                  result.Token.GrantedScopes,
		FirstLogin:              result.FirstLogin,
		PasswordPolicyViolation: result.PasswordPolicyViolation,
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, common.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Me(principal))
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, common.ErrUnauthenticated)
		return
	}

	var body changePasswordRequest
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.service.ChangePassword(r.Context(), principal, services.ChangePasswordRequest{
		OldPassword:  body.OldPassword,
		NewPassword:  body.NewPassword,
		EmailAddress: body.EmailAddress,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, common.ErrUnauthenticated)
		return
	}

	views, err := h.service.List(r.Context(), principal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if views == nil {
		views = []models.IdentityView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, common.ErrUnauthenticated)
		return
	}

	var body createUserRequest
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.service.Create(r.Context(), principal, services.CreateRequest{
		Username:     body.Username,
		Password:     body.Password,
		EmailAddress: body.EmailAddress,
		Scopes:       body.Scopes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, common.ErrUnauthenticated)
		return
	}

	var body updateUserRequest
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.service.Update(r.Context(), principal, services.UpdateRequest{
		Username: body.Username,
		Scopes:   body.Scopes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, common.ErrUnauthenticated)
		return
	}

	if err := h.service.Delete(r.Context(), principal, r.URL.Query().Get("username")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
