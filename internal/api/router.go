package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOption configures optional routes.
type RouterOption func(*routerConfig)

type routerConfig struct {
	events  http.Handler
	metrics http.Handler
}

// WithEvents mounts h at GET /events inside the auth group.
func WithEvents(h http.Handler) RouterOption {
	return func(c *routerConfig) { c.events = h }
}

// WithMetrics mounts h at GET /metrics, outside the auth group so scrapers
// need no token.
func WithMetrics(h http.Handler) RouterOption {
	return func(c *routerConfig) { c.metrics = h }
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(notes Notes, pub Publisher, authEnabled bool, token string, opts ...RouterOption) chi.Router {
	var cfg routerConfig
	for _, o := range opts {
		o(&cfg)
	}
	h := NewHandler(notes, pub)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		r.Get("/notes", h.ListNotes)
		r.Get("/notes/*", h.GetNote)
		r.Get("/search", h.Search)

		r.Get("/render/*", h.Render)
		r.Post("/publish/*", h.Publish)
		r.Get("/publications", h.Publications)

		if cfg.events != nil {
			r.Get("/events", cfg.events.ServeHTTP)
		}
	})

	return r
}
