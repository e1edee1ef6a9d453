package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"deedwizard/internal/platform/metrics"
	"deedwizard/internal/platform/middleware"
	"deedwizard/pkg/platform/httputil"
	"deedwizard/pkg/platform/middleware/requestmeta"
)

// NewRouter mounts the wizard routes with the shared middleware plus the
// health and metrics endpoints.
func NewRouter(h *Handler, logger *slog.Logger, httpMetrics *metrics.HTTP, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestmeta.Middleware)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(httpMetrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	h.Register(r)
	return r
}
