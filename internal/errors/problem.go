package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON flattens extensions into the problem document.
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := map[string]interface{}{
		"type":   pd.Type,
		"title":  pd.Title,
		"status": pd.Status,
		"ok":     false,
	}
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}
	for k, v := range pd.Extensions {
		data[k] = v
	}
	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error body.
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem document.
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// MapLicenseError maps domain errors to HTTP problem details. Business
// rejections carry a reason category only; transport failures advertise
// themselves as retryable.
func MapLicenseError(err error, instance, traceID string) *ProblemDetails {
	var problem *ProblemDetails

	var validation *ValidationError
	var mismatch *HardwareMismatchError
	var alreadyActive *AlreadyActivatedError
	var expired *ExpiredError

	switch {
	case errors.As(err, &validation):
		title := "Invalid License Key"
		problemType := "/errors/invalid-license-key"
		if errors.Is(validation, ErrInvalidHardwareID) {
			title = "Invalid Hardware ID"
			problemType = "/errors/invalid-hardware-id"
		}
		problem = NewProblemDetails(http.StatusBadRequest, problemType, title, validation.Error(), instance).
			WithExtension("reason", "validation").
			WithExtension("field", validation.Field)

	case errors.Is(err, ErrLicenseNotFound):
		problem = NewProblemDetails(
			http.StatusNotFound,
			"/errors/license-not-found",
			"License Not Found",
			"No license exists for the provided key.",
			instance,
		).WithExtension("reason", "not_found")

	case errors.Is(err, ErrLicenseNotActivated):
		problem = NewProblemDetails(
			http.StatusForbidden,
			"/errors/license-not-activated",
			"License Not Activated",
			"This license has not been activated yet.",
			instance,
		).WithExtension("reason", "not_activated")

	case errors.As(err, &alreadyActive):
		problem = NewProblemDetails(
			http.StatusConflict,
			"/errors/license-already-activated",
			"License Already Activated",
			"This license has already been activated on another device.",
			instance,
		).WithExtension("reason", "already_activated").
			WithExtension("bound_hardware_prefix", alreadyActive.BoundPrefix)

	case errors.Is(err, ErrAlreadyActivated):
		problem = NewProblemDetails(
			http.StatusConflict,
			"/errors/license-already-activated",
			"License Already Activated",
			"This license has already been activated on another device.",
			instance,
		).WithExtension("reason", "already_activated")

	case errors.As(err, &mismatch):
		problem = NewProblemDetails(
			http.StatusForbidden,
			"/errors/hardware-mismatch",
			"Hardware Mismatch",
			"This license is bound to a different device.",
			instance,
		).WithExtension("reason", "hardware_mismatch").
			WithExtension("bound_hardware_prefix", mismatch.BoundPrefix)

	case errors.Is(err, ErrHardwareMismatch):
		problem = NewProblemDetails(
			http.StatusForbidden,
			"/errors/hardware-mismatch",
			"Hardware Mismatch",
			"This license is bound to a different device.",
			instance,
		).WithExtension("reason", "hardware_mismatch")

	case errors.As(err, &expired):
		problem = NewProblemDetails(
			http.StatusForbidden,
			"/errors/license-expired",
			"License Expired",
			"This license has expired.",
			instance,
		).WithExtension("reason", "expired").
			WithExtension("expired_at", expired.ExpiresAt.UTC().Format(time.RFC3339)).
			WithExtension("expired_for", expired.ExpiredFor.Round(time.Second).String())

	case errors.Is(err, ErrLicenseExpired):
		problem = NewProblemDetails(
			http.StatusForbidden,
			"/errors/license-expired",
			"License Expired",
			"This license has expired.",
			instance,
		).WithExtension("reason", "expired")

	case errors.Is(err, ErrKeyAlreadyIssued):
		problem = NewProblemDetails(
			http.StatusConflict,
			"/errors/key-already-issued",
			"Key Already Issued",
			"A license with this key already exists.",
			instance,
		).WithExtension("reason", "already_issued")

	case errors.Is(err, ErrActivationConflict):
		problem = NewProblemDetails(
			http.StatusConflict,
			"/errors/activation-conflict",
			"Activation Conflict",
			"A concurrent activation is in progress. Please retry.",
			instance,
		).WithExtension("reason", "conflict").
			WithExtension("retryable", true)

	case errors.Is(err, ErrStoreUnavailable):
		problem = NewProblemDetails(
			http.StatusServiceUnavailable,
			"/errors/store-unavailable",
			"License Store Unavailable",
			"The license store did not respond. Please retry.",
			instance,
		).WithExtension("reason", "store_unavailable").
			WithExtension("retryable", true)

	default:
		problem = NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal-error",
			"Internal Server Error",
			"An unexpected error occurred while processing your request.",
			instance,
		).WithExtension("reason", "internal")
	}

	if traceID != "" {
		problem.WithExtension("trace_id", traceID)
	}
	return problem
}
