package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/catalog-watcher/sync"

	// SyncTracerName is the tracer used for sync cycle spans
	SyncTracerName = "github.com/stacklok/catalog-watcher/sync"
)

// SyncMetrics holds the instruments recorded by the sync cycle.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	cycleDuration metric.Float64Histogram
	eventsTotal   metric.Int64Counter
	knownItems    metric.Int64Gauge
	fetchErrors   metric.Int64Counter
}

// NewSyncMetrics creates the sync instruments. If provider is nil, it returns nil.
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"catalog_watcher_cycle_duration_seconds",
		metric.WithDescription("Duration of sync cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	eventsTotal, err := meter.Int64Counter(
		"catalog_watcher_events_total",
		metric.WithDescription("Change events dispatched to the notification sink"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	knownItems, err := meter.Int64Gauge(
		"catalog_watcher_known_items",
		metric.WithDescription("Number of catalog items in the sync state"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	fetchErrors, err := meter.Int64Counter(
		"catalog_watcher_fetch_errors_total",
		metric.WithDescription("Catalog fetch failures by kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		cycleDuration: cycleDuration,
		eventsTotal:   eventsTotal,
		knownItems:    knownItems,
		fetchErrors:   fetchErrors,
	}, nil
}

// RecordCycle records the duration and outcome of one cycle
func (m *SyncMetrics) RecordCycle(ctx context.Context, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.cycleDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordEvent counts one dispatched event of the given kind
func (m *SyncMetrics) RecordEvent(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordKnownItems records the size of the sync state
func (m *SyncMetrics) RecordKnownItems(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.knownItems.Record(ctx, int64(count))
}

// RecordFetchError counts one catalog fetch failure
func (m *SyncMetrics) RecordFetchError(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.fetchErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
