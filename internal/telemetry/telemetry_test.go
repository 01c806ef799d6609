package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		cfg              *Config
		expectNoOpTracer bool
		expectNoOpMeter  bool
		expectHandler    bool
		errorContains    string
	}{
		{
			name:             "nil config",
			expectNoOpTracer: true,
			expectNoOpMeter:  true,
		},
		{
			name:             "disabled",
			cfg:              &Config{Enabled: false, Metrics: &MetricsConfig{Enabled: true}},
			expectNoOpTracer: true,
			expectNoOpMeter:  true,
		},
		{
			name: "tracing only",
			cfg: &Config{
				Enabled:  true,
				Insecure: true,
				Tracing:  &TracingConfig{Enabled: true, Sampling: 1},
			},
			expectNoOpMeter: true,
		},
		{
			name: "prometheus metrics",
			cfg: &Config{
				Enabled: true,
				Metrics: &MetricsConfig{Enabled: true, Exporters: []string{ExporterPrometheus}},
			},
			expectNoOpTracer: true,
			expectHandler:    true,
		},
		{
			name: "otlp metrics with a push interval",
			cfg: &Config{
				Enabled:  true,
				Insecure: true,
				Metrics:  &MetricsConfig{Enabled: true, Interval: "15s"},
			},
			expectNoOpTracer: true,
		},
		{
			name: "invalid config",
			cfg: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 3},
			},
			errorContains: "invalid telemetry configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tel, err := New(ctx, WithTelemetryConfig(tt.cfg))
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

			if tt.expectNoOpTracer {
				_, ok := tel.TracerProvider().(tracenoop.TracerProvider)
				assert.True(t, ok, "expected no-op tracer provider")
			} else {
				_, ok := tel.TracerProvider().(*sdktrace.TracerProvider)
				assert.True(t, ok, "expected SDK tracer provider")
			}

			if tt.expectNoOpMeter {
				_, ok := tel.MeterProvider().(noop.MeterProvider)
				assert.True(t, ok, "expected no-op meter provider")
			} else {
				_, ok := tel.MeterProvider().(*sdkmetric.MeterProvider)
				assert.True(t, ok, "expected SDK meter provider")
			}

			if tt.expectHandler {
				assert.NotNil(t, tel.MetricsHandler())
			} else {
				assert.Nil(t, tel.MetricsHandler())
			}
		})
	}
}

func TestNew_PrometheusServesSyncMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tel, err := New(ctx, WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Exporters: []string{ExporterPrometheus}},
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	metrics, err := NewSyncMetrics(tel.MeterProvider())
	require.NoError(t, err)
	metrics.RecordKnownItems(ctx, 17)
	metrics.RecordEvent(ctx, "new")

	rec := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "catalog_watcher_known_items")
	assert.Contains(t, string(body), "catalog_watcher_events_total")
}

func TestTelemetry_ShutdownIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tel, err := New(ctx, WithTelemetryConfig(&Config{
		Enabled: true,
		Tracing: &TracingConfig{Enabled: true},
	}))
	require.NoError(t, err)

	assert.NoError(t, tel.Shutdown(ctx))
	assert.NoError(t, tel.Shutdown(ctx))
}
