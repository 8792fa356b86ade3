package api

import (
	"net/http"

	"certflow/internal/common/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the router dependencies.
type RouterConfig struct {
	Logger         logger.Logger
	Sessions       *SessionHandler
	MetricsHandler http.Handler
	Health         func(r *http.Request) error
}

// NewRouter wires the session API under /api/v1.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", healthHandler(cfg.Health))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", cfg.Sessions.Create)
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", cfg.Sessions.Get)
			r.Put("/fields", cfg.Sessions.SetFields)
			r.Post("/advance", cfg.Sessions.Advance)
			r.Post("/advance/{target}", cfg.Sessions.AdvanceTo)
			r.Post("/retreat", cfg.Sessions.Retreat)
			r.Post("/submit", cfg.Sessions.Submit)
			r.Get("/preview", cfg.Sessions.Preview)
			r.Get("/payment", cfg.Sessions.Payment)
		})
	})

	return r
}

func healthHandler(check func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
