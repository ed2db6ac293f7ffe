package license

import (
	"time"
)

// ActivationStatus classifies the outcome of an activation decision.
type ActivationStatus string

const (
	// ActivatedNew: first activation; the returned record carries the new
	// binding and must be persisted with a conditional update.
	ActivatedNew ActivationStatus = "activated"
	// AlreadyActivatedSame: idempotent re-activation from the bound device.
	// No authoritative mutation.
	AlreadyActivatedSame ActivationStatus = "already_activated_same_device"
	// AlreadyActivatedElsewhere: the key is bound to a different device.
	// The record must not change.
	AlreadyActivatedElsewhere ActivationStatus = "already_activated_other_device"
)

// ActivationResult is the engine's answer to an activation request.
type ActivationResult struct {
	Status      ActivationStatus
	Type        Type
	ActivatedAt time.Time
	ExpiresAt   time.Time
	// BoundHardwarePrefix is the short disclosure form of the already-bound
	// fingerprint, set only for AlreadyActivatedElsewhere.
	BoundHardwarePrefix string
}

// VerifyStatus classifies a verification decision.
type VerifyStatus string

const (
	VerifyValid            VerifyStatus = "valid"
	VerifyNotActivated     VerifyStatus = "not_activated"
	VerifyHardwareMismatch VerifyStatus = "hardware_mismatch"
	VerifyExpired          VerifyStatus = "expired"
)

// VerifyResult is the engine's answer to a verification request. The
// valid/expired judgment is recomputed fresh on every call and never stored.
type VerifyResult struct {
	Status        VerifyStatus
	Type          Type
	ActivatedAt   time.Time
	ExpiresAt     time.Time
	RemainingDays int
	// ExpiredFor is how long past expiry the request arrived, set only for
	// VerifyExpired.
	ExpiredFor time.Duration
	// BoundHardwarePrefix is set only for VerifyHardwareMismatch.
	BoundHardwarePrefix string
}

// Activate computes the record transition for an activation request. Pure:
// no I/O, no clock reads, no mutation of the input. Callers must have
// validated hardwareID's format and must persist a changed record with a
// conditional update keyed on the revision they read, so two concurrent
// first activations cannot both win.
func Activate(rec Record, hardwareID string, now time.Time) (Record, ActivationResult) {
	hardwareID = NormalizeHardwareID(hardwareID)
	now = now.UTC()

	if rec.Activated() {
		if rec.HardwareID != hardwareID {
			// Foreign device. Hard rejection, record untouched.
			return rec, ActivationResult{
				Status:              AlreadyActivatedElsewhere,
				Type:                rec.EffectiveType(),
				ActivatedAt:         *rec.ActivatedAt,
				ExpiresAt:           rec.ExpiresAt,
				BoundHardwarePrefix: HardwarePrefix(rec.HardwareID),
			}
		}
		// Same device asking again: success with the original stamps. The
		// second call never extends or shortens expiry.
		return rec, ActivationResult{
			Status:      AlreadyActivatedSame,
			Type:        rec.EffectiveType(),
			ActivatedAt: *rec.ActivatedAt,
			ExpiresAt:   rec.ExpiresAt,
		}
	}

	// First activation: bind the device and stamp times exactly once.
	next := rec
	next.HardwareID = hardwareID
	activatedAt := now
	next.ActivatedAt = &activatedAt
	if rec.EffectiveType() != TypeLifetime {
		next.ExpiresAt = now.AddDate(0, 0, rec.EffectiveDurationDays())
	}
	// Lifetime keeps the sentinel written at issuance.
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.ActivationCount++

	return next, ActivationResult{
		Status:      ActivatedNew,
		Type:        next.EffectiveType(),
		ActivatedAt: activatedAt,
		ExpiresAt:   next.ExpiresAt,
	}
}

// Verify judges whether (record, hardwareID) is currently a valid pair.
// Read-only; first matching rule wins. A missing record is the caller's
// NotFound, not an engine concern.
func Verify(rec Record, hardwareID string, now time.Time) VerifyResult {
	hardwareID = NormalizeHardwareID(hardwareID)
	now = now.UTC()

	if !rec.Activated() {
		return VerifyResult{Status: VerifyNotActivated, Type: rec.EffectiveType()}
	}

	if rec.HardwareID != hardwareID {
		return VerifyResult{
			Status:              VerifyHardwareMismatch,
			Type:                rec.EffectiveType(),
			BoundHardwarePrefix: HardwarePrefix(rec.HardwareID),
		}
	}

	if rec.EffectiveType() == TypeLifetime {
		// Expiry is never checked for lifetime licenses.
		return VerifyResult{
			Status:      VerifyValid,
			Type:        TypeLifetime,
			ActivatedAt: *rec.ActivatedAt,
			ExpiresAt:   rec.ExpiresAt,
		}
	}

	if rec.ExpiresAt.Before(now) {
		return VerifyResult{
			Status:      VerifyExpired,
			Type:        rec.EffectiveType(),
			ActivatedAt: *rec.ActivatedAt,
			ExpiresAt:   rec.ExpiresAt,
			ExpiredFor:  now.Sub(rec.ExpiresAt),
		}
	}

	return VerifyResult{
		Status:        VerifyValid,
		Type:          rec.EffectiveType(),
		ActivatedAt:   *rec.ActivatedAt,
		ExpiresAt:     rec.ExpiresAt,
		RemainingDays: int(rec.ExpiresAt.Sub(now).Hours() / 24),
	}
}
