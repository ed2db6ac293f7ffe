package infrastructure

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// MetricsProvider bundles the OpenTelemetry meter provider with the
// Prometheus registry it exports into.
type MetricsProvider struct {
	Registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
}

// NewMetricsProvider wires the otel metrics SDK to a Prometheus exporter so
// /metrics serves every instrument the application records.
func NewMetricsProvider(serviceName, version string) (*MetricsProvider, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	return &MetricsProvider{Registry: registry, provider: provider}, nil
}

// Meter returns a named meter from the provider.
func (p *MetricsProvider) Meter(name string) metric.Meter {
	return p.provider.Meter(name)
}

// Shutdown flushes and stops the metrics pipeline.
func (p *MetricsProvider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}
