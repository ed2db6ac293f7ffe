package license

import (
	"strconv"
	"strings"
	"time"
)

// DefaultDurationDays is applied when a record carries no usable duration.
const DefaultDurationDays = 30

// LifetimeSentinel is the far-future expiry stamped on lifetime licenses at
// issuance. Activation never recomputes it.
var LifetimeSentinel = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Type is the license policy class.
type Type string

const (
	TypeStandard Type = "standard"
	TypeTrial    Type = "trial"
	TypeLifetime Type = "lifetime"
)

// ValidType reports whether t is a known license type.
func ValidType(t Type) bool {
	switch t {
	case TypeStandard, TypeTrial, TypeLifetime:
		return true
	}
	return false
}

// Record is one license document as held by the record store. The engine
// receives a copy and returns a replacement; it never mutates in place.
//
// HardwareID and ActivatedAt are write-once: empty until first activation,
// then immutable for the lifetime of the record. ExpiresAt is computed once
// at first activation for non-lifetime types and fixed at issuance for
// lifetime ones.
type Record struct {
	Key          string `bson:"_id" json:"key"`
	Type         Type   `bson:"license_type" json:"license_type"`
	DurationDays string `bson:"duration_days,omitempty" json:"duration_days,omitempty"`

	HardwareID  string     `bson:"hardware_id,omitempty" json:"hardware_id,omitempty"`
	ActivatedAt *time.Time `bson:"activated_at,omitempty" json:"activated_at,omitempty"`
	ExpiresAt   time.Time  `bson:"expires_at" json:"expires_at"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`

	// Diagnostic counters. Best-effort, no invariant depends on them.
	ActivationCount int64 `bson:"activation_count" json:"activation_count"`
	CheckCount      int64 `bson:"check_count" json:"check_count"`

	// Revision is the optimistic-concurrency token the store compares on
	// conditional updates. Never exposed to clients.
	Revision int64 `bson:"revision" json:"-"`
}

// Activated reports whether the record has gone through first activation.
func (r *Record) Activated() bool {
	return r.ActivatedAt != nil && !r.ActivatedAt.IsZero()
}

// EffectiveType returns the record's type, defaulting records provisioned
// before the type column existed to standard.
func (r *Record) EffectiveType() Type {
	if r.Type == "" {
		return TypeStandard
	}
	return r.Type
}

// EffectiveDurationDays parses the stored duration. Provisioning writes the
// field as free text, so absence and garbage both fall back to the default.
func (r *Record) EffectiveDurationDays() int {
	return ParseDurationDays(r.DurationDays)
}

// ParseDurationDays converts a stored duration value to whole days,
// defaulting to DefaultDurationDays on absence, parse failure, or a
// non-positive value.
func ParseDurationDays(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultDurationDays
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return DefaultDurationDays
	}
	return n
}
