package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	licenseErrors "keyserve/internal/errors"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
	"keyserve/internal/middleware"
	"keyserve/internal/services"
)

// validate carries the custom license_key and hardware_id rules shared by
// every request payload in this package.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("license_key", func(fl validator.FieldLevel) bool {
		return license.ValidateKeyFormat(license.NormalizeKey(fl.Field().String())) == nil
	})
	v.RegisterValidation("hardware_id", func(fl validator.FieldLevel) bool {
		return license.ValidateHardwareID(license.NormalizeHardwareID(fl.Field().String())) == nil
	})
	return v
}

// LicenseHandler serves the public activation and verification endpoints.
type LicenseHandler struct {
	service services.LicenseService
	logger  *slog.Logger
	loc     *time.Location
}

// NewLicenseHandler creates the license handler. loc selects the timezone
// for the human-readable timestamp fields.
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger, loc *time.Location) *LicenseHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
		loc:     loc,
	}
}

// Routes returns the chi router for /api/license.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/activate", h.Activate)
	r.Post("/verify", h.Verify)
	return r
}

// ActivationRequest is the POST /api/license/activate payload.
type ActivationRequest struct {
	LicenseKey string `json:"license_key" validate:"required,license_key"`
	HardwareID string `json:"hardware_id" validate:"required,hardware_id"`
}

// Bind implements render.Binder.
func (req *ActivationRequest) Bind(r *http.Request) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	return nil
}

// VerificationRequest is the POST /api/license/verify payload.
type VerificationRequest struct {
	LicenseKey string `json:"license_key" validate:"required,license_key"`
	HardwareID string `json:"hardware_id" validate:"required,hardware_id"`
}

// Bind implements render.Binder.
func (req *VerificationRequest) Bind(r *http.Request) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	return nil
}

// ActivationResponse answers a successful activation, new or repeated.
type ActivationResponse struct {
	OK                 bool   `json:"ok"`
	Status             string `json:"status"`
	LicenseType        string `json:"license_type"`
	ActivatedAt        string `json:"activated_at"`
	ExpiresAt          string `json:"expires_at"`
	ExpiresAtDisplay   string `json:"expires_at_display"`
	ActivatedAtDisplay string `json:"activated_at_display"`
	Message            string `json:"message"`
}

// VerificationResponse answers a valid license. Rejections travel as
// problem documents instead.
type VerificationResponse struct {
	OK               bool   `json:"ok"`
	Status           string `json:"status"`
	LicenseType      string `json:"license_type"`
	Lifetime         bool   `json:"lifetime"`
	ActivatedAt      string `json:"activated_at"`
	ExpiresAt        string `json:"expires_at"`
	ExpiresAtDisplay string `json:"expires_at_display"`
	RemainingDays    int    `json:"remaining_days"`
}

// Activate handles POST /api/license/activate.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &ActivationRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderError(w, r, licenseErrors.NewKeyFormatError(err.Error()))
		return
	}

	outcome, err := h.service.Activate(ctx, req.LicenseKey, req.HardwareID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	resp := &ActivationResponse{
		OK:                 true,
		Status:             string(outcome.Status),
		LicenseType:        string(outcome.Type),
		ActivatedAt:        license.FormatInstant(outcome.ActivatedAt),
		ExpiresAt:          license.FormatInstant(outcome.ExpiresAt),
		ExpiresAtDisplay:   license.FormatDisplay(outcome.ExpiresAt, h.loc),
		ActivatedAtDisplay: license.FormatDisplay(outcome.ActivatedAt, h.loc),
		Message:            activationMessage(outcome.Status),
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// Verify handles POST /api/license/verify.
func (h *LicenseHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &VerificationRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderError(w, r, licenseErrors.NewKeyFormatError(err.Error()))
		return
	}

	outcome, err := h.service.Verify(ctx, req.LicenseKey, req.HardwareID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	resp := &VerificationResponse{
		OK:               true,
		Status:           "valid",
		LicenseType:      string(outcome.Type),
		Lifetime:         outcome.Lifetime,
		ActivatedAt:      license.FormatInstant(outcome.ActivatedAt),
		ExpiresAt:        license.FormatInstant(outcome.ExpiresAt),
		ExpiresAtDisplay: license.FormatDisplay(outcome.ExpiresAt, h.loc),
		RemainingDays:    outcome.RemainingDays,
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *LicenseHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	pd := licenseErrors.MapLicenseError(err, r.URL.Path, infrastructure.GetTraceID(ctx))
	h.logger.WarnContext(ctx, "license request rejected",
		slog.String("request_id", middleware.GetRequestID(ctx)),
		slog.String("path", r.URL.Path),
		slog.Int("status", pd.Status),
		slog.String("error", err.Error()),
	)
	render.Render(w, r, pd)
}

func activationMessage(status license.ActivationStatus) string {
	switch status {
	case license.AlreadyActivatedSame:
		return "License already activated on this device"
	default:
		return "License activated successfully"
	}
}
