package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey      = "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE"
	testHardware = "a1b2c3d4e5f60718a1b2c3d4e5f60718"
	otherDevice  = "ffffffffffffffffffffffffffffffff"
)

func issuedRecord() Record {
	return Record{
		Key:       testKey,
		Type:      TypeStandard,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Revision:  1,
	}
}

func TestActivateFirstActivation(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	next, result := Activate(issuedRecord(), testHardware, now)

	assert.Equal(t, ActivatedNew, result.Status)
	assert.Equal(t, TypeStandard, result.Type)
	assert.Equal(t, now, result.ActivatedAt)
	assert.Equal(t, now.AddDate(0, 0, 30), result.ExpiresAt, "default validity is 30 days")

	assert.Equal(t, testHardware, next.HardwareID)
	require.NotNil(t, next.ActivatedAt)
	assert.Equal(t, now, *next.ActivatedAt)
	assert.Equal(t, int64(1), next.ActivationCount)
}

func TestActivateUsesDurationDays(t *testing.T) {
	tests := []struct {
		name     string
		duration string
		wantDays int
	}{
		{"explicit", "90", 90},
		{"empty defaults", "", 30},
		{"garbage defaults", "soon", 30},
		{"negative defaults", "-5", 30},
		{"zero defaults", "0", 30},
	}

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := issuedRecord()
			rec.DurationDays = tt.duration

			_, result := Activate(rec, testHardware, now)
			assert.Equal(t, now.AddDate(0, 0, tt.wantDays), result.ExpiresAt)
		})
	}
}

func TestActivateIdempotentOnSameDevice(t *testing.T) {
	first := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	later := first.Add(72 * time.Hour)

	activated, firstResult := Activate(issuedRecord(), testHardware, first)
	again, repeat := Activate(activated, testHardware, later)

	assert.Equal(t, AlreadyActivatedSame, repeat.Status)
	assert.Equal(t, firstResult.ActivatedAt, repeat.ActivatedAt, "original stamp survives")
	assert.Equal(t, firstResult.ExpiresAt, repeat.ExpiresAt, "repeat never moves expiry")
	assert.Equal(t, activated, again, "record unchanged")
}

func TestActivateRejectsForeignDevice(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	activated, _ := Activate(issuedRecord(), testHardware, now)
	unchanged, result := Activate(activated, otherDevice, now.Add(time.Hour))

	assert.Equal(t, AlreadyActivatedElsewhere, result.Status)
	assert.Equal(t, activated, unchanged, "foreign attempt must not mutate the record")
	assert.Equal(t, testHardware[:HardwarePrefixLen], result.BoundHardwarePrefix)
	assert.Len(t, result.BoundHardwarePrefix, HardwarePrefixLen)
}

func TestActivateLifetimeKeepsSentinel(t *testing.T) {
	rec := issuedRecord()
	rec.Type = TypeLifetime
	rec.ExpiresAt = LifetimeSentinel
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	next, result := Activate(rec, testHardware, now)

	assert.Equal(t, ActivatedNew, result.Status)
	assert.Equal(t, LifetimeSentinel, next.ExpiresAt)
	assert.Equal(t, LifetimeSentinel, result.ExpiresAt)
}

func TestActivateBackfillsCreatedAt(t *testing.T) {
	rec := issuedRecord()
	rec.CreatedAt = time.Time{}
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	next, _ := Activate(rec, testHardware, now)
	assert.Equal(t, now, next.CreatedAt)
}

func TestVerifyOrdering(t *testing.T) {
	activatedAt := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	activated, _ := Activate(issuedRecord(), testHardware, activatedAt)

	t.Run("not activated wins over everything", func(t *testing.T) {
		result := Verify(issuedRecord(), testHardware, activatedAt)
		assert.Equal(t, VerifyNotActivated, result.Status)
	})

	t.Run("mismatch wins over expiry", func(t *testing.T) {
		longDead := activatedAt.AddDate(1, 0, 0)
		result := Verify(activated, otherDevice, longDead)
		assert.Equal(t, VerifyHardwareMismatch, result.Status)
		assert.Equal(t, testHardware[:HardwarePrefixLen], result.BoundHardwarePrefix)
	})

	t.Run("valid within window", func(t *testing.T) {
		result := Verify(activated, testHardware, activatedAt.AddDate(0, 0, 10))
		assert.Equal(t, VerifyValid, result.Status)
		assert.Equal(t, 20, result.RemainingDays)
	})
}

func TestVerifyExpiryBoundary(t *testing.T) {
	activatedAt := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	activated, result := Activate(issuedRecord(), testHardware, activatedAt)
	expiry := result.ExpiresAt

	t.Run("one second before expiry is valid", func(t *testing.T) {
		r := Verify(activated, testHardware, expiry.Add(-time.Second))
		assert.Equal(t, VerifyValid, r.Status)
	})

	t.Run("exactly at expiry is valid", func(t *testing.T) {
		r := Verify(activated, testHardware, expiry)
		assert.Equal(t, VerifyValid, r.Status)
	})

	t.Run("one second past expiry is expired", func(t *testing.T) {
		r := Verify(activated, testHardware, expiry.Add(time.Second))
		assert.Equal(t, VerifyExpired, r.Status)
		assert.Equal(t, time.Second, r.ExpiredFor)
		assert.Equal(t, expiry, r.ExpiresAt)
	})
}

func TestVerifyJudgmentIsNeverStored(t *testing.T) {
	activatedAt := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	activated, result := Activate(issuedRecord(), testHardware, activatedAt)

	expired := Verify(activated, testHardware, result.ExpiresAt.AddDate(0, 1, 0))
	assert.Equal(t, VerifyExpired, expired.Status)

	// The same record still answers from its stored fields; nothing latched.
	valid := Verify(activated, testHardware, activatedAt.AddDate(0, 0, 1))
	assert.Equal(t, VerifyValid, valid.Status)
}

func TestVerifyLifetimeIgnoresExpiry(t *testing.T) {
	rec := issuedRecord()
	rec.Type = TypeLifetime
	rec.ExpiresAt = LifetimeSentinel
	activatedAt := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	activated, _ := Activate(rec, testHardware, activatedAt)

	farFuture := time.Date(2124, 1, 1, 0, 0, 0, 0, time.UTC)
	result := Verify(activated, testHardware, farFuture)
	assert.Equal(t, VerifyValid, result.Status)
	assert.Equal(t, TypeLifetime, result.Type)
}
