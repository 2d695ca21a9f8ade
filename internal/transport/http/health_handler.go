package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"ocrdash/internal/services"
)

// HealthReporter is the part of the health service the handler needs.
type HealthReporter interface {
	Liveness(ctx context.Context) services.Liveness
	Readiness(ctx context.Context) services.Readiness
	Version() services.VersionInfo
}

// HealthHandler serves the health and version endpoints.
type HealthHandler struct {
	reporter HealthReporter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(reporter HealthReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// Register adds the health routes to r.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/health", h.Live)
	r.Get("/health/ready", h.Ready)
	r.Get("/version", h.Version)
}

// Live handles GET /api/health
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.reporter.Liveness(r.Context()))
}

// Ready handles GET /api/health/ready. A failing check answers 503.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.reporter.Readiness(r.Context())
	if !status.Ready() {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

// Version handles GET /api/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.reporter.Version())
}
