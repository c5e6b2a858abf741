// Package httpapi exposes the identity service over HTTP.
package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/khazana/internal/logging"
	"github.com/dmitrijs2005/khazana/internal/server/auth"
	"github.com/dmitrijs2005/khazana/internal/server/metrics"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
	"github.com/dmitrijs2005/khazana/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// Handler binds the HTTP routes to an IdentityService.
type Handler struct {
	service *services.IdentityService
	metrics *metrics.Metrics
	log     logging.Logger
}

func NewHandler(service *services.IdentityService, m *metrics.Metrics, l logging.Logger) *Handler {
	return &Handler{
		service: service,
		metrics: m,
		log:     l.With("module", "http"),
	}
}

var (
	meFirstLogin = auth.Requirement{Scopes: []scope.Scope{scope.Me}, AllowOnFirstLogin: true}
	meFull       = auth.Requirement{Scopes: []scope.Scope{scope.Me}}
)

// NewRouter registers the routes and the middleware stack. Extra route groups
// can be mounted by the caller through Handler.RequireScopes.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)
	r.Use(h.metricsMiddleware)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth", h.issueToken)

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.RequireScopes(meFirstLogin))
				r.Get("/me", h.me)
				r.Patch("/change_password", h.changePassword)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.RequireScopes(meFull))
				r.Get("/", h.listUsers)
				r.Post("/", h.createUser)
				r.Patch("/", h.updateUser)
				r.Delete("/", h.deleteUser)
			})
		})
	})

	return r
}
