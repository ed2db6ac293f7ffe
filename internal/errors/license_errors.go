package errors

import (
	"errors"
	"fmt"
	"time"
)

// License error taxonomy. Validation errors never touch the store. All
// business-rule rejections are terminal and never mutate state; only
// ErrActivationConflict and ErrStoreUnavailable are retryable.
var (
	ErrInvalidKeyFormat  = errors.New("invalid license key format")
	ErrInvalidHardwareID = errors.New("invalid hardware id")

	ErrLicenseNotFound     = errors.New("license not found")
	ErrLicenseNotActivated = errors.New("license not activated")
	ErrHardwareMismatch    = errors.New("license bound to a different device")
	ErrLicenseExpired      = errors.New("license expired")
	ErrAlreadyActivated    = errors.New("license already activated on another device")
	ErrKeyAlreadyIssued    = errors.New("license key already issued")

	ErrActivationConflict = errors.New("concurrent activation conflict")
	ErrStoreUnavailable   = errors.New("license store unavailable")
)

// IsRetryable reports whether the caller may usefully retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrActivationConflict) || errors.Is(err, ErrStoreUnavailable)
}

// HardwareMismatchError carries the short disclosure prefix of the bound
// fingerprint. The full identifier is never included.
type HardwareMismatchError struct {
	BoundPrefix string
}

func (e *HardwareMismatchError) Error() string {
	return fmt.Sprintf("license bound to a different device (fingerprint %s…)", e.BoundPrefix)
}

func (e *HardwareMismatchError) Unwrap() error { return ErrHardwareMismatch }

// AlreadyActivatedError is the activation-time form of a foreign-device
// rejection.
type AlreadyActivatedError struct {
	BoundPrefix string
	ActivatedAt time.Time
}

func (e *AlreadyActivatedError) Error() string {
	return fmt.Sprintf("license already activated on another device (fingerprint %s…)", e.BoundPrefix)
}

func (e *AlreadyActivatedError) Unwrap() error { return ErrAlreadyActivated }

// ExpiredError records how long past expiry the request arrived, for display.
type ExpiredError struct {
	ExpiresAt  time.Time
	ExpiredFor time.Duration
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("license expired %s ago", e.ExpiredFor.Round(time.Second))
}

func (e *ExpiredError) Unwrap() error { return ErrLicenseExpired }

// ValidationError wraps a field-level format failure so handlers can report
// which field was malformed without consulting the store.
type ValidationError struct {
	Field  string
	Reason string
	kind   error
}

// NewKeyFormatError builds a ValidationError for a malformed license key.
func NewKeyFormatError(reason string) *ValidationError {
	return &ValidationError{Field: "key", Reason: reason, kind: ErrInvalidKeyFormat}
}

// NewHardwareIDError builds a ValidationError for a malformed hardware id.
func NewHardwareIDError(reason string) *ValidationError {
	return &ValidationError{Field: "hardware_id", Reason: reason, kind: ErrInvalidHardwareID}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.kind }
