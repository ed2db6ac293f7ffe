package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	licenseErrors "keyserve/internal/errors"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
	"keyserve/internal/services"
)

// AdminHandler serves the operator endpoints for issuing and listing
// licenses. These routes are expected to sit behind network-level access
// control, not end-user authentication.
type AdminHandler struct {
	service services.LicenseService
	logger  *slog.Logger
	loc     *time.Location
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(service services.LicenseService, logger *slog.Logger, loc *time.Location) *AdminHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "admin")),
		loc:     loc,
	}
}

// Routes returns the chi router for /api/admin.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/licenses", h.Issue)
	r.Get("/licenses", h.List)
	return r
}

// IssueLicenseRequest is the POST /api/admin/licenses payload. All fields
// are optional; an empty body issues a standard 30-day key.
type IssueLicenseRequest struct {
	LicenseKey     string `json:"license_key,omitempty" validate:"omitempty,license_key"`
	LicenseType    string `json:"license_type,omitempty" validate:"omitempty,oneof=standard trial lifetime"`
	DurationDays   string `json:"duration_days,omitempty"`
	LifetimeExpiry string `json:"lifetime_expiry,omitempty"`
}

// Bind implements render.Binder.
func (req *IssueLicenseRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

// LicenseSummary is one row of the admin license register.
type LicenseSummary struct {
	Key              string `json:"key"`
	LicenseType      string `json:"license_type"`
	DurationDays     int    `json:"duration_days"`
	Activated        bool   `json:"activated"`
	HardwarePrefix   string `json:"hardware_prefix,omitempty"`
	ActivatedAt      string `json:"activated_at,omitempty"`
	ExpiresAt        string `json:"expires_at,omitempty"`
	ExpiresAtDisplay string `json:"expires_at_display,omitempty"`
	CreatedAt        string `json:"created_at"`
	ActivationCount  int64  `json:"activation_count"`
	CheckCount       int64  `json:"check_count"`
}

// Issue handles POST /api/admin/licenses.
func (h *AdminHandler) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &IssueLicenseRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderError(w, r, licenseErrors.NewKeyFormatError(err.Error()))
		return
	}

	issue := services.IssueRequest{
		Key:          req.LicenseKey,
		Type:         license.Type(req.LicenseType),
		DurationDays: req.DurationDays,
	}
	if req.LifetimeExpiry != "" {
		t, err := license.ParseInstant(req.LifetimeExpiry)
		if err != nil {
			h.renderError(w, r, licenseErrors.NewKeyFormatError("lifetime_expiry must be RFC 3339"))
			return
		}
		issue.LifetimeExpiry = &t
	}

	rec, err := h.service.Issue(ctx, issue)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.summarize(rec))
}

// List handles GET /api/admin/licenses.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recs, err := h.service.List(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	summaries := make([]LicenseSummary, 0, len(recs))
	for i := range recs {
		summaries = append(summaries, *h.summarize(&recs[i]))
	}
	render.JSON(w, r, map[string]interface{}{
		"ok":       true,
		"count":    len(summaries),
		"licenses": summaries,
	})
}

func (h *AdminHandler) summarize(rec *license.Record) *LicenseSummary {
	s := &LicenseSummary{
		Key:             rec.Key,
		LicenseType:     string(rec.EffectiveType()),
		DurationDays:    rec.EffectiveDurationDays(),
		Activated:       rec.Activated(),
		CreatedAt:       license.FormatInstant(rec.CreatedAt),
		ActivationCount: rec.ActivationCount,
		CheckCount:      rec.CheckCount,
	}
	if rec.Activated() {
		s.HardwarePrefix = license.HardwarePrefix(rec.HardwareID)
		s.ActivatedAt = license.FormatInstant(*rec.ActivatedAt)
	}
	if !rec.ExpiresAt.IsZero() {
		s.ExpiresAt = license.FormatInstant(rec.ExpiresAt)
		s.ExpiresAtDisplay = license.FormatDisplay(rec.ExpiresAt, h.loc)
	}
	return s
}

func (h *AdminHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	pd := licenseErrors.MapLicenseError(err, r.URL.Path, infrastructure.GetTraceID(ctx))
	h.logger.WarnContext(ctx, "admin request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", pd.Status),
		slog.String("error", err.Error()),
	)
	render.Render(w, r, pd)
}
