package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderOption configures NewTracerProvider and NewMeterProvider.
// Options that only concern one signal are ignored by the other provider.
type ProviderOption func(*providerSettings)

type providerSettings struct {
	serviceName    string
	serviceVersion string
	endpoint       string
	insecure       bool

	tracing *TracingConfig

	metrics    *MetricsConfig
	registerer prometheus.Registerer
	interval   time.Duration
}

func newProviderSettings(opts []ProviderOption) *providerSettings {
	s := &providerSettings{
		serviceName:    DefaultServiceName,
		serviceVersion: "unknown",
		endpoint:       DefaultEndpoint,
		interval:       DefaultMetricsInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithService sets the service.name and service.version resource attributes
func WithService(name, version string) ProviderOption {
	return func(s *providerSettings) {
		s.serviceName = name
		s.serviceVersion = version
	}
}

// WithCollector points the OTLP exporters at endpoint ("host:port")
func WithCollector(endpoint string, insecure bool) ProviderOption {
	return func(s *providerSettings) {
		s.endpoint = endpoint
		s.insecure = insecure
	}
}

// WithTracingConfig enables tracing as described by tc
func WithTracingConfig(tc *TracingConfig) ProviderOption {
	return func(s *providerSettings) {
		s.tracing = tc
	}
}

// WithMetricsConfig enables the metric exporters listed in mc
func WithMetricsConfig(mc *MetricsConfig) ProviderOption {
	return func(s *providerSettings) {
		s.metrics = mc
	}
}

// WithPrometheusRegisterer sets where the Prometheus exporter registers its collector
func WithPrometheusRegisterer(reg prometheus.Registerer) ProviderOption {
	return func(s *providerSettings) {
		s.registerer = reg
	}
}

// WithMeterInterval sets the OTLP metric push interval
func WithMeterInterval(d time.Duration) ProviderOption {
	return func(s *providerSettings) {
		if d > 0 {
			s.interval = d
		}
	}
}

// configOptions translates the root configuration into provider options
func configOptions(c *Config) []ProviderOption {
	return []ProviderOption{
		WithService(c.GetServiceName(), c.GetServiceVersion()),
		WithCollector(c.GetEndpoint(), c.Insecure),
		WithTracingConfig(c.Tracing),
		WithMetricsConfig(c.Metrics),
		WithMeterInterval(c.Metrics.GetInterval()),
	}
}

// resource builds the resource shared by both providers. resource.Default is
// not merged in, its schema URL can differ from the semconv version used here.
func (s *providerSettings) resource(ctx context.Context) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(s.serviceName),
			semconv.ServiceVersion(s.serviceVersion),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
