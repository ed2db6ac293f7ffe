package license

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const MeterName = "keyserve-license"

// Metrics holds the license-specific OpenTelemetry instruments.
type Metrics struct {
	ActivationAttempts metric.Int64Counter
	ActivationSuccess  metric.Int64Counter
	ActivationFailures metric.Int64Counter
	ActivationDuration metric.Float64Histogram

	VerifyAttempts   metric.Int64Counter
	VerifyValid      metric.Int64Counter
	VerifyRejections metric.Int64Counter
	VerifyDuration   metric.Float64Histogram

	StoreConflicts metric.Int64Counter
	StoreErrors    metric.Int64Counter
}

// InitMetrics creates all license instruments on the given meter.
func InitMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.ActivationAttempts, err = meter.Int64Counter(
		"license_activation_attempts_total",
		metric.WithDescription("Total license activation attempts"),
	); err != nil {
		return nil, fmt.Errorf("create activation attempts counter: %w", err)
	}
	if m.ActivationSuccess, err = meter.Int64Counter(
		"license_activation_success_total",
		metric.WithDescription("Total successful license activations"),
	); err != nil {
		return nil, fmt.Errorf("create activation success counter: %w", err)
	}
	if m.ActivationFailures, err = meter.Int64Counter(
		"license_activation_failures_total",
		metric.WithDescription("Total rejected or failed license activations"),
	); err != nil {
		return nil, fmt.Errorf("create activation failures counter: %w", err)
	}
	if m.ActivationDuration, err = meter.Float64Histogram(
		"license_activation_duration_seconds",
		metric.WithDescription("License activation duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create activation duration histogram: %w", err)
	}

	if m.VerifyAttempts, err = meter.Int64Counter(
		"license_verify_attempts_total",
		metric.WithDescription("Total license verification attempts"),
	); err != nil {
		return nil, fmt.Errorf("create verify attempts counter: %w", err)
	}
	if m.VerifyValid, err = meter.Int64Counter(
		"license_verify_valid_total",
		metric.WithDescription("Total verifications judged valid"),
	); err != nil {
		return nil, fmt.Errorf("create verify valid counter: %w", err)
	}
	if m.VerifyRejections, err = meter.Int64Counter(
		"license_verify_rejections_total",
		metric.WithDescription("Total verifications rejected"),
	); err != nil {
		return nil, fmt.Errorf("create verify rejections counter: %w", err)
	}
	if m.VerifyDuration, err = meter.Float64Histogram(
		"license_verify_duration_seconds",
		metric.WithDescription("License verification duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create verify duration histogram: %w", err)
	}

	if m.StoreConflicts, err = meter.Int64Counter(
		"license_store_conflicts_total",
		metric.WithDescription("Conditional updates lost to a concurrent writer"),
	); err != nil {
		return nil, fmt.Errorf("create store conflicts counter: %w", err)
	}
	if m.StoreErrors, err = meter.Int64Counter(
		"license_store_errors_total",
		metric.WithDescription("Record store transport failures"),
	); err != nil {
		return nil, fmt.Errorf("create store errors counter: %w", err)
	}

	return m, nil
}
