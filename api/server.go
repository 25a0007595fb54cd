/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:    Unique ID per request for tracing
  2. Logger:       Request logging
  3. Recoverer:    Panic recovery (500 instead of crash)
  4. CORS:         Cross-origin requests for frontends
  5. Authenticate: Bearer JWT on everything under /api

ROUTE GROUPS:
  /api/timesheets/*     Sheet CRUD, lines and lifecycle transitions
                        (approve, refuse, seal, unseal, revert: manager or admin)
  /api/admin/*          Tenant settings, directory, AutoSeal (role admin)
  /healthz              Liveness, unauthenticated

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Token validation
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the process-level settings of the router.
type RouterConfig struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Authenticator, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Route("/timesheets", func(r chi.Router) {
			r.Get("/", h.ListTimesheets)
			r.Post("/", h.CreateTimesheet)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTimesheet)
				r.Patch("/", h.UpdateDraft)
				r.Delete("/", h.DeleteTimesheet)
				r.Get("/audit", h.AuditTrail)

				r.Put("/lines", h.UpsertLine)
				r.Delete("/lines/{lineID}", h.DeleteLine)

				r.Post("/submit", h.Transition("submit", submit))

				// Review transitions
				r.Group(func(r chi.Router) {
					r.Use(RequireRole(RoleManager, RoleAdmin))
					r.Post("/approve", h.Transition("approve", approve))
					r.Post("/refuse", h.Transition("refuse", refuse))
					r.Post("/seal", h.Transition("seal", seal))
					r.Post("/unseal", h.Transition("unseal", unseal))
					r.Post("/revert", h.Transition("revert", revert))
				})
			})
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(RoleAdmin))
			r.Get("/settings/{key}", h.GetSetting)
			r.Put("/settings/{key}", h.SetSetting)
			r.Put("/employees/{id}", h.SaveEmployee)
			r.Put("/tasks/{id}", h.SaveTask)
			r.Post("/autoseal", h.RunAutoSeal)
		})
	})

	return r
}
