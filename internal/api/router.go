package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"sqlward/internal/middleware"
)

// NewRouter builds the HTTP router: health probe, CORS, request ids,
// request logging, caller identity, and the versioned API surface.
func NewRouter(h *Handler, logger *slog.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.CallerHeader, "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Caller)

		r.Route("/databases", func(r chi.Router) {
			r.Get("/", h.listDatabases)
			r.Post("/", h.createDatabase)
			r.Delete("/{databaseID}", h.deleteDatabase)
			r.Get("/{databaseID}/rules", h.listRules)
			r.Post("/{databaseID}/query", h.executeQuery)
			r.Get("/{databaseID}/logs", h.listLogs)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Post("/", h.createRule)
			r.Get("/{ruleID}", h.getRule)
			r.Put("/{ruleID}", h.updateRule)
			r.Delete("/{ruleID}", h.deleteRule)
			r.Post("/{ruleID}/test", h.testRule)
		})
	})

	return r
}
