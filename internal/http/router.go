package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"juris-ai/internal/handlers"
)

// Deps holds the handlers the router wires up.
type Deps struct {
	Chat      *handlers.ChatHandler
	Documents *handlers.DocumentsHandler
	Health    *handlers.HealthHandler
}

// NewRouter creates the HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", deps.Health)
		r.Method(http.MethodPost, "/chat", deps.Chat)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", deps.Documents.Ingest)
			r.Get("/", deps.Documents.List)
			r.Get("/stats", deps.Documents.Stats)
			r.Delete("/{id}", deps.Documents.Delete)
		})
	})

	return r
}
