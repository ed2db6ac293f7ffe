package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	licenseErrors "keyserve/internal/errors"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
	"keyserve/internal/services"
)

// HealthHandler serves the liveness probe and the server-time endpoint
// clients use to detect clock skew.
type HealthHandler struct {
	service services.LicenseService
	logger  *slog.Logger
	loc     *time.Location
	version string
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(service services.LicenseService, logger *slog.Logger, loc *time.Location, version string) *HealthHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
		loc:     loc,
		version: version,
	}
}

// Health handles GET /healthz. It pings the record store so a green
// answer means the service can actually serve activations.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Health(ctx); err != nil {
		pd := licenseErrors.MapLicenseError(err, r.URL.Path, infrastructure.GetTraceID(ctx))
		h.logger.ErrorContext(ctx, "health check failed",
			slog.String("error", err.Error()),
		)
		render.Render(w, r, pd)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"ok":      true,
		"status":  "healthy",
		"version": h.version,
	})
}

// ServerTime handles GET /api/time.
func (h *HealthHandler) ServerTime(w http.ResponseWriter, r *http.Request) {
	now := h.service.ServerTime()
	render.JSON(w, r, map[string]interface{}{
		"ok":                  true,
		"server_time":         license.FormatInstant(now),
		"server_time_display": license.FormatDisplay(now, h.loc),
		"timezone":            h.loc.String(),
	})
}
