/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. auth.Middleware on everything except /healthz and login/register

ROUTE GROUPS:
  /healthz              Liveness
  /api/auth/*           Login, registration, logout
  /api/me               Current user
  /api/timesheet/*      Own entries and submission
  /api/projects/*       Projects (writes are admin-only)
  /api/reports/*        Reports and exports
  /api/admin/*          Users, rates, settings, unsubmit, audit (admin)
  /api/scenarios/*      Demo data (admin)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/auth.go: Session middleware and capability guards
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/timecost/auth"
)

// Options tune the router.
type Options struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Public auth routes
		r.Post("/auth/login", h.Login)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.Issuer, h.Service.Store()))

			r.Get("/me", h.Me)

			// Timesheet routes
			r.Route("/timesheet", func(r chi.Router) {
				r.Get("/", h.ListEntries)
				r.Put("/entries", h.SaveEntry)
				r.Delete("/entries/{id}", h.DeleteEntry)
				r.Post("/submit", h.Submit)
				r.Post("/reference", h.ImportReference)
			})

			// Project routes
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.ListProjects)
				r.Group(func(r chi.Router) {
					r.Use(auth.RequireCapability(auth.CanManageWorkers))
					r.Post("/", h.CreateProject)
					r.Post("/{id}/archive", h.ArchiveProject)
					r.Post("/{id}/unarchive", h.UnarchiveProject)
					r.Delete("/{id}", h.DeleteProject)
				})
			})

			// Report routes
			r.Route("/reports", func(r chi.Router) {
				r.Get("/", h.GetReport)
				r.Get("/export.csv", h.ExportReportCSV)
				r.Get("/export.xlsx", h.ExportReportXLSX)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.With(auth.RequireCapability(auth.CanUnsubmit)).Post("/unsubmit", h.Unsubmit)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireCapability(auth.CanManageWorkers))
					r.Get("/users", h.ListUsers)
					r.Post("/users", h.CreateUser)
					r.Put("/users/{id}/roles", h.SetRoles)
					r.Post("/users/{id}/archive", h.ArchiveUser)
					r.Get("/users/{id}/rates", h.ListRates)
					r.Post("/users/{id}/rates", h.SetRate)
					r.Put("/users/{id}/projects/{projectID}", h.AssignManager)
					r.Delete("/users/{id}/projects/{projectID}", h.UnassignManager)
					r.Get("/settings", h.GetSettings)
					r.Put("/settings/{key}", h.UpdateSetting)
					r.Get("/audit", h.ListAudit)
				})
			})

			// Scenario routes
			r.Route("/scenarios", func(r chi.Router) {
				r.Use(auth.RequireCapability(auth.CanManageWorkers))
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		})
	})

	return r
}
