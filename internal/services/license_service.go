// Package services holds the business logic between the HTTP layer and the
// record store. The license service drives the read-decide-write cycle
// around the pure activation engine.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	licenseErrors "keyserve/internal/errors"
	"keyserve/internal/license"
	"keyserve/internal/store"
)

// activationAttempts bounds the conditional-update retry loop. Two
// concurrent first activations settle within one retry; anything beyond
// this is surfaced as a conflict the caller may retry.
const activationAttempts = 3

// checkCountTimeout caps the fire-and-forget diagnostic counter bump.
const checkCountTimeout = 2 * time.Second

// LicenseService exposes the license operations the transport layer needs.
type LicenseService interface {
	Activate(ctx context.Context, key, hardwareID string) (*ActivationOutcome, error)
	Verify(ctx context.Context, key, hardwareID string) (*VerificationOutcome, error)
	Issue(ctx context.Context, req IssueRequest) (*license.Record, error)
	List(ctx context.Context) ([]license.Record, error)
	ServerTime() time.Time
	Health(ctx context.Context) error
}

// ActivationOutcome is the service-level result of a successful activation,
// covering both first activation and the idempotent same-device repeat.
type ActivationOutcome struct {
	Status      license.ActivationStatus
	Type        license.Type
	ActivatedAt time.Time
	ExpiresAt   time.Time
}

// VerificationOutcome is returned only for valid licenses; every rejection
// travels as a typed error.
type VerificationOutcome struct {
	Type          license.Type
	ActivatedAt   time.Time
	ExpiresAt     time.Time
	RemainingDays int
	Lifetime      bool
}

// IssueRequest provisions a new record in the Issued state. Key is optional;
// when absent the service generates one.
type IssueRequest struct {
	Key            string
	Type           license.Type
	DurationDays   string
	LifetimeExpiry *time.Time
}

type licenseService struct {
	store   store.Store
	logger  *slog.Logger
	metrics *license.Metrics
	now     func() time.Time
	genKey  func() string
}

// Option configures the license service.
type Option func(*licenseService)

// WithClock overrides the service clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *licenseService) { s.now = now }
}

// WithKeyGenerator overrides issued-key generation, for tests.
func WithKeyGenerator(gen func() string) Option {
	return func(s *licenseService) { s.genKey = gen }
}

// WithMetrics attaches OpenTelemetry instruments.
func WithMetrics(m *license.Metrics) Option {
	return func(s *licenseService) { s.metrics = m }
}

// NewLicenseService creates the license service over the given store.
func NewLicenseService(st store.Store, logger *slog.Logger, opts ...Option) LicenseService {
	s := &licenseService{
		store:  st,
		logger: logger.With(slog.String("service", "license")),
		now:    func() time.Time { return time.Now().UTC() },
		genKey: license.GenerateKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate binds the key to the requesting hardware, or reports the existing
// binding. The read-decide-write runs as a conditional update retried with a
// fresh read on conflict, so two concurrent first activations from different
// devices cannot both win.
func (s *licenseService) Activate(ctx context.Context, key, hardwareID string) (*ActivationOutcome, error) {
	start := s.now()
	key, hardwareID, err := s.validateRequest(key, hardwareID)
	if err != nil {
		return nil, err
	}
	s.countActivation(ctx, "attempt")

	var outcome *ActivationOutcome
	err = retry.Do(
		func() error {
			rec, err := s.store.Get(ctx, key)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return retry.Unrecoverable(licenseErrors.ErrLicenseNotFound)
				}
				return retry.Unrecoverable(storeFailure(err))
			}

			next, result := license.Activate(*rec, hardwareID, s.now())
			switch result.Status {
			case license.AlreadyActivatedElsewhere:
				// Foreign device: no write, hard rejection.
				return retry.Unrecoverable(&licenseErrors.AlreadyActivatedError{
					BoundPrefix: result.BoundHardwarePrefix,
					ActivatedAt: result.ActivatedAt,
				})

			case license.AlreadyActivatedSame:
				// Idempotent repeat: original stamps, no authoritative write.
				outcome = &ActivationOutcome{
					Status:      result.Status,
					Type:        result.Type,
					ActivatedAt: result.ActivatedAt,
					ExpiresAt:   result.ExpiresAt,
				}
				return nil

			default: // license.ActivatedNew
				if err := s.store.UpdateIf(ctx, &next, rec.Revision); err != nil {
					if errors.Is(err, store.ErrConflict) {
						s.countConflict(ctx)
						return err // retryable: re-read and decide again
					}
					if errors.Is(err, store.ErrNotFound) {
						return retry.Unrecoverable(licenseErrors.ErrLicenseNotFound)
					}
					return retry.Unrecoverable(storeFailure(err))
				}
				outcome = &ActivationOutcome{
					Status:      result.Status,
					Type:        result.Type,
					ActivatedAt: result.ActivatedAt,
					ExpiresAt:   result.ExpiresAt,
				}
				return nil
			}
		},
		retry.Attempts(activationAttempts),
		retry.Delay(25*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, store.ErrConflict) }),
	)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			err = licenseErrors.ErrActivationConflict
		}
		if errors.Is(err, licenseErrors.ErrStoreUnavailable) {
			s.countStoreError(ctx)
		}
		s.countActivation(ctx, "failure")
		s.logger.WarnContext(ctx, "activation rejected",
			slog.String("key", license.MaskKey(key)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.countActivation(ctx, "success")
	s.observeDuration(ctx, s.metricActivationDuration(), start)
	s.logger.InfoContext(ctx, "activation completed",
		slog.String("key", license.MaskKey(key)),
		slog.String("status", string(outcome.Status)),
		slog.Time("expires_at", outcome.ExpiresAt),
	)
	return outcome, nil
}

// Verify judges the (key, hardware) pair against the current record.
// Read-mostly: the only write is a best-effort diagnostic counter bump that
// never gates the answer.
func (s *licenseService) Verify(ctx context.Context, key, hardwareID string) (*VerificationOutcome, error) {
	start := s.now()
	key, hardwareID, err := s.validateRequest(key, hardwareID)
	if err != nil {
		return nil, err
	}
	s.countVerify(ctx, "attempt")

	rec, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.countVerify(ctx, "rejected")
			return nil, licenseErrors.ErrLicenseNotFound
		}
		s.countStoreError(ctx)
		return nil, storeFailure(err)
	}

	result := license.Verify(*rec, hardwareID, s.now())
	s.bumpCheckCount(key)

	switch result.Status {
	case license.VerifyNotActivated:
		s.countVerify(ctx, "rejected")
		return nil, licenseErrors.ErrLicenseNotActivated

	case license.VerifyHardwareMismatch:
		s.countVerify(ctx, "rejected")
		return nil, &licenseErrors.HardwareMismatchError{BoundPrefix: result.BoundHardwarePrefix}

	case license.VerifyExpired:
		s.countVerify(ctx, "rejected")
		return nil, &licenseErrors.ExpiredError{
			ExpiresAt:  result.ExpiresAt,
			ExpiredFor: result.ExpiredFor,
		}
	}

	s.countVerify(ctx, "valid")
	s.observeDuration(ctx, s.metricVerifyDuration(), start)
	return &VerificationOutcome{
		Type:          result.Type,
		ActivatedAt:   result.ActivatedAt,
		ExpiresAt:     result.ExpiresAt,
		RemainingDays: result.RemainingDays,
		Lifetime:      result.Type == license.TypeLifetime,
	}, nil
}

// Issue provisions a new record in the Issued state. Called by the operator
// tool, never by end users.
func (s *licenseService) Issue(ctx context.Context, req IssueRequest) (*license.Record, error) {
	key := license.NormalizeKey(req.Key)
	if key == "" {
		key = s.genKey()
	}
	if err := license.ValidateKeyFormat(key); err != nil {
		return nil, licenseErrors.NewKeyFormatError(err.Error())
	}
	typ := req.Type
	if typ == "" {
		typ = license.TypeStandard
	}
	if !license.ValidType(typ) {
		return nil, licenseErrors.NewKeyFormatError("unknown license type " + string(typ))
	}

	now := s.now()
	rec := &license.Record{
		Key:          key,
		Type:         typ,
		DurationDays: req.DurationDays,
		CreatedAt:    now,
	}
	if typ == license.TypeLifetime {
		rec.ExpiresAt = license.LifetimeSentinel
		if req.LifetimeExpiry != nil {
			rec.ExpiresAt = req.LifetimeExpiry.UTC()
		}
	}

	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, licenseErrors.ErrKeyAlreadyIssued
		}
		return nil, storeFailure(err)
	}

	s.logger.InfoContext(ctx, "license issued",
		slog.String("key", license.MaskKey(key)),
		slog.String("license_type", string(typ)),
	)
	return rec, nil
}

func (s *licenseService) List(ctx context.Context) ([]license.Record, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	return recs, nil
}

// ServerTime returns the engine-observed current time. Clients compare it
// to their local clock to detect skew.
func (s *licenseService) ServerTime() time.Time {
	return s.now()
}

func (s *licenseService) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return storeFailure(err)
	}
	return nil
}

// validateRequest normalizes and checks both identifiers before any store
// access. Malformed input never reaches the store.
func (s *licenseService) validateRequest(key, hardwareID string) (string, string, error) {
	key = license.NormalizeKey(key)
	if err := license.ValidateKeyFormat(key); err != nil {
		return "", "", licenseErrors.NewKeyFormatError(err.Error())
	}
	hardwareID = license.NormalizeHardwareID(hardwareID)
	if err := license.ValidateHardwareID(hardwareID); err != nil {
		return "", "", licenseErrors.NewHardwareIDError(err.Error())
	}
	return key, hardwareID, nil
}

// bumpCheckCount fires the diagnostic counter update without holding up the
// response. Failures are logged and dropped.
func (s *licenseService) bumpCheckCount(key string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), checkCountTimeout)
		defer cancel()
		if err := s.store.BumpCheckCount(ctx, key); err != nil {
			s.logger.Debug("check count bump failed",
				slog.String("key", license.MaskKey(key)),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func storeFailure(err error) error {
	return errors.Join(licenseErrors.ErrStoreUnavailable, err)
}

func (s *licenseService) countActivation(ctx context.Context, result string) {
	if s.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	switch result {
	case "attempt":
		s.metrics.ActivationAttempts.Add(ctx, 1)
	case "success":
		s.metrics.ActivationSuccess.Add(ctx, 1, attrs)
	case "failure":
		s.metrics.ActivationFailures.Add(ctx, 1, attrs)
	}
}

func (s *licenseService) countVerify(ctx context.Context, result string) {
	if s.metrics == nil {
		return
	}
	switch result {
	case "attempt":
		s.metrics.VerifyAttempts.Add(ctx, 1)
	case "valid":
		s.metrics.VerifyValid.Add(ctx, 1)
	case "rejected":
		s.metrics.VerifyRejections.Add(ctx, 1)
	}
}

func (s *licenseService) countConflict(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.StoreConflicts.Add(ctx, 1)
	}
}

func (s *licenseService) countStoreError(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.StoreErrors.Add(ctx, 1)
	}
}

func (s *licenseService) metricActivationDuration() metric.Float64Histogram {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.ActivationDuration
}

func (s *licenseService) metricVerifyDuration() metric.Float64Histogram {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.VerifyDuration
}

func (s *licenseService) observeDuration(ctx context.Context, h metric.Float64Histogram, start time.Time) {
	if h == nil {
		return
	}
	h.Record(ctx, s.now().Sub(start).Seconds())
}
