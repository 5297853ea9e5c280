package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prescrimed/tenant-access-service/internal/adapters/middleware"
	"github.com/prescrimed/tenant-access-service/internal/adapters/response"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/services"
)

// Routes bundles everything the HTTP surface is assembled from.
type Routes struct {
	Auth        *middleware.AuthMiddleware
	Evaluator   *services.PermissionEvaluator
	RateLimiter *middleware.RateLimiter
	CORSOrigins []string

	Sessions   *AuthHandler
	Patients   *PatientHandler
	Evolutions *EvolutionHandler
	Tenants    *TenantHandler
	Health     *HealthHandler
}

// NewRouter wires every route behind the gate it needs. Tenant-scoped routes
// run the full pipeline; company administration only authenticates, so a
// blocked company can still be managed.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORSMiddleware(rt.CORSOrigins))
	r.Use(middleware.Metrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, domain.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.ErrorCode(w, http.StatusMethodNotAllowed, response.CodeBadRequest, "method not allowed")
	})

	r.Get("/health", rt.Health.Health)
	r.Get("/health/ready", rt.Health.Ready)
	r.Get("/health/live", rt.Health.Live)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rt.RateLimiter.Middleware)
			r.Post("/auth/login", rt.Sessions.Login)
			r.Post("/auth/refresh", rt.Sessions.Refresh)
		})

		r.With(rt.Auth.AuthenticateOnly).Post("/auth/logout", rt.Sessions.Logout)

		r.Group(func(r chi.Router) {
			r.Use(rt.Auth.Authenticate)

			r.Get("/auth/me", rt.Sessions.Me)

			r.With(middleware.RequireModule(rt.Evaluator, domain.ModulePatients)).
				Get("/patients", rt.Patients.List)

			r.Route("/evolutions", func(r chi.Router) {
				readable := r.With(middleware.RequireModule(rt.Evaluator, domain.ModuleEvolution))
				readable.Get("/", rt.Evolutions.List)
				readable.Post("/", rt.Evolutions.Create)
				readable.Get("/{id}", rt.Evolutions.Get)

				r.Put("/{id}", rt.Evolutions.Update)
				r.Patch("/{id}", rt.Evolutions.Update)
				r.With(middleware.RequireRole(rt.Evaluator, domain.RoleSuperAdmin)).
					Delete("/{id}", rt.Evolutions.Delete)
			})
		})

		r.Route("/empresas", func(r chi.Router) {
			r.Use(rt.Auth.AuthenticateOnly)
			r.Use(middleware.RequireRole(rt.Evaluator, domain.RoleSuperAdmin))

			r.Get("/", rt.Tenants.List)
			r.Get("/{id}", rt.Tenants.Get)
			r.Delete("/{id}", rt.Tenants.Delete)
			r.Post("/{id}/trial/start", rt.Tenants.StartTrial)
			r.Post("/{id}/trial/extend", rt.Tenants.ExtendTrial)
			r.Post("/{id}/trial/end", rt.Tenants.EndTrial)
			r.Post("/{id}/trial/convert", rt.Tenants.ConvertTrial)
			r.Post("/{id}/deactivate", rt.Tenants.Deactivate)
			r.Post("/{id}/reactivate", rt.Tenants.Reactivate)
		})
	})

	return r
}
