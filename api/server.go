/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     One structured log line per request
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/health           Liveness
  /api/attendance/*     Caller's attendance and leave (bearer token)
  /api/user/settings    Caller's settings (bearer token)
  /api/admin/check      Admin flag for the caller (bearer token)
  /api/admin/*          Admin operations (bearer token of an admin)
  /api/admin/sync       Admin token or X-API-Key

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Auth and logging middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/attendance/auth"
)

// RouterConfig carries the collaborators the router needs besides the
// handler.
type RouterConfig struct {
	Authenticator  auth.Authenticator
	AdminAPIKey    string
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", APIKeyHeader},
		AllowCredentials: true,
	}))

	requireAuth := RequireAuth(cfg.Authenticator)
	requireAdmin := RequireAdmin(h.Admin)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/attendance", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/mark", h.Mark)
			r.Get("/today", h.Today)
			r.Get("/stats", h.Stats)
			r.Get("/leaves", h.Leaves)
			r.Post("/leave-request", h.RequestLeave)
			r.Put("/leave", h.EditLeave)
			r.Delete("/leave", h.DeleteLeave)
			r.Post("/sync", h.Sync)
			r.Get("/monthly-report", h.MonthlyReport)
			r.Get("/yearly-leaves-report", h.YearlyLeavesReport)
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/settings", h.GetSettings)
			r.Post("/settings", h.UpdateSettings)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(RequireAdminOrAPIKey(cfg.Authenticator, h.Admin, cfg.AdminAPIKey)).Post("/sync", h.AdminSync)
			r.With(requireAuth).Get("/check", h.AdminCheck)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireAdmin)
				r.Get("/users", h.AdminUsers)
				r.Get("/today", h.AdminToday)
				r.Get("/user-metrics", h.AdminUserMetrics)
				r.Get("/leave-report", h.AdminLeaveReport)
				r.Get("/work-report", h.AdminWorkReport)
				r.Get("/scenarios", h.ListScenarios)
				r.Post("/scenarios/load", h.LoadScenario)
			})
		})
	})

	return r
}
