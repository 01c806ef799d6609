package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/catalog-watcher/internal/catalog"
	"github.com/stacklok/catalog-watcher/internal/filtering"
	"github.com/stacklok/catalog-watcher/internal/notify"
	"github.com/stacklok/catalog-watcher/internal/otel"
	"github.com/stacklok/catalog-watcher/internal/state"
	"github.com/stacklok/catalog-watcher/internal/syncerr"
	"github.com/stacklok/catalog-watcher/internal/telemetry"
)

// CycleResult summarizes one sync cycle
type CycleResult struct {
	FirstRun         bool
	Fetched          int
	Filtered         int
	New              int
	Updated          int
	Unchanged        int
	Suppressed       int
	Dispatched       int
	DispatchFailures int

	// FetchError is the transient failure that cut pagination short, if any.
	// The cycle still proceeds with the items fetched before it.
	FetchError error

	// Skipped is set when the batch was empty and nothing was reconciled
	Skipped bool

	Duration time.Duration
}

// Manager runs sync cycles against an explicitly owned state
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/stacklok/catalog-watcher/internal/sync Manager
type Manager interface {
	// RunCycle fetches, reconciles, persists and dispatches once.
	// st is mutated in place. The returned error is a persistence failure;
	// fetch and dispatch failures are reported in the result.
	RunCycle(ctx context.Context, st *state.SyncState) (*CycleResult, error)
}

// defaultManager is the default implementation of Manager
type defaultManager struct {
	client        catalog.Client
	store         state.Store
	sink          notify.Sink
	filter        *filtering.Filter
	metrics       *telemetry.SyncMetrics
	tracer        trace.Tracer
	pagesPerCycle int
	firstRunCap   int
	now           func() time.Time
}

// ManagerOption configures the default manager
type ManagerOption func(*defaultManager)

// WithPagesPerCycle sets how many catalog pages are scanned per cycle
func WithPagesPerCycle(n int) ManagerOption {
	return func(m *defaultManager) {
		m.pagesPerCycle = max(1, n)
	}
}

// WithFirstRunCap sets the cap on new-item events before initialization
func WithFirstRunCap(n int) ManagerOption {
	return func(m *defaultManager) {
		m.firstRunCap = n
	}
}

// WithFilter drops items that do not pass f before reconciliation
func WithFilter(f *filtering.Filter) ManagerOption {
	return func(m *defaultManager) {
		m.filter = f
	}
}

// WithMetrics sets the sync metrics. Nil metrics record nothing.
func WithMetrics(metrics *telemetry.SyncMetrics) ManagerOption {
	return func(m *defaultManager) {
		m.metrics = metrics
	}
}

// WithTracerProvider sets the provider used for cycle spans
func WithTracerProvider(tp trace.TracerProvider) ManagerOption {
	return func(m *defaultManager) {
		if tp != nil {
			m.tracer = tp.Tracer(telemetry.SyncTracerName)
		}
	}
}

// WithClock overrides the clock
func WithClock(now func() time.Time) ManagerOption {
	return func(m *defaultManager) {
		m.now = now
	}
}

// NewManager creates a Manager wiring the catalog, the store and the sink
func NewManager(client catalog.Client, store state.Store, sink notify.Sink, opts ...ManagerOption) Manager {
	m := &defaultManager{
		client:        client,
		store:         store,
		sink:          sink,
		pagesPerCycle: 1,
		firstRunCap:   DefaultFirstRunCap,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunCycle implements Manager.RunCycle
func (m *defaultManager) RunCycle(ctx context.Context, st *state.SyncState) (*CycleResult, error) {
	if st == nil {
		return nil, errors.New("sync state is required")
	}

	cycleID := uuid.NewString()
	result := &CycleResult{FirstRun: st.IsFirstRun()}

	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.cycle", trace.WithAttributes(
		otel.AttrCycleID.String(cycleID),
		otel.AttrFirstRun.Bool(result.FirstRun),
		otel.AttrPages.Int(m.pagesPerCycle),
	))
	defer span.End()

	start := m.now()
	logger := slog.Default().With("cycle_id", cycleID)

	logger.Info("Starting sync cycle",
		"first_run", result.FirstRun,
		"known_items", st.Len(),
		"pages", m.pagesPerCycle)

	items, err := m.client.FetchAllPages(ctx, m.pagesPerCycle)
	result.Fetched = len(items)
	if err != nil {
		result.FetchError = err
		m.metrics.RecordFetchError(ctx, syncerr.KindOf(err).String())
		otel.RecordError(span, err)
		logger.Warn("Catalog fetch incomplete, continuing with partial batch",
			"items", len(items),
			"error", err)
	}

	items, result.Filtered = m.filter.Apply(items)
	if result.Filtered > 0 {
		logger.Debug("Filtered catalog items", "dropped", result.Filtered, "kept", len(items))
	}

	if len(items) == 0 {
		logger.Warn("No items to reconcile, skipping", "fetched", result.Fetched)
		result.Skipped = true
		result.Duration = m.now().Sub(start)
		m.metrics.RecordCycle(ctx, result.Duration, err == nil)
		span.SetAttributes(otel.AttrSkipped.Bool(true))
		return result, nil
	}

	delta := Reconcile(items, st, ReconcileOptions{
		Now:         m.now,
		FirstRun:    result.FirstRun,
		FirstRunCap: m.firstRunCap,
	})
	delta.Apply(st)
	if result.FirstRun {
		st.MarkInitialized(m.now())
	}

	result.New = len(delta.NewEvents) + delta.Suppressed
	result.Updated = len(delta.UpdateEvents)
	result.Unchanged = len(delta.Unchanged)
	result.Suppressed = delta.Suppressed
	if delta.Suppressed > 0 {
		logger.Info("First run, limiting new item notifications",
			"sent", len(delta.NewEvents),
			"suppressed", delta.Suppressed)
	}

	// Persisted once before dispatch and once after
	saveErr := m.save(ctx, logger, st)

	for _, change := range delta.Events() {
		event := notify.NewEvent(change.Kind, change.Item)
		if err := m.dispatch(ctx, event); err != nil {
			result.DispatchFailures++
			logger.Error("Failed to dispatch notification",
				"event_id", event.ID.String(),
				"item_id", event.Identity,
				"kind", string(event.Kind),
				"error", err)
			continue
		}
		result.Dispatched++
		m.metrics.RecordEvent(ctx, string(change.Kind))
	}

	if err := m.save(ctx, logger, st); err != nil && saveErr == nil {
		saveErr = err
	}

	result.Duration = m.now().Sub(start)
	m.metrics.RecordKnownItems(ctx, st.Len())
	m.metrics.RecordCycle(ctx, result.Duration, saveErr == nil && result.FetchError == nil)

	span.SetAttributes(
		otel.AttrItemCount.Int(result.Fetched),
		otel.AttrKnownItems.Int(st.Len()),
		otel.AttrDispatched.Int(result.Dispatched),
		otel.AttrFailedCount.Int(result.DispatchFailures),
	)
	otel.RecordError(span, saveErr)

	logger.Info("Sync cycle finished",
		"fetched", result.Fetched,
		"filtered", result.Filtered,
		"new", result.New,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"dispatched", result.Dispatched,
		"dispatch_failures", result.DispatchFailures,
		"known_items", st.Len(),
		"duration", result.Duration.String())

	return result, saveErr
}

func (m *defaultManager) dispatch(ctx context.Context, event notify.Event) error {
	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.dispatch", trace.WithAttributes(
		otel.AttrItemID.String(event.Identity),
		otel.AttrEventKind.String(string(event.Kind)),
	))
	defer span.End()

	err := m.sink.Notify(ctx, event)
	otel.RecordError(span, err)
	return err
}

func (m *defaultManager) save(ctx context.Context, logger *slog.Logger, st *state.SyncState) error {
	if err := m.store.Save(ctx, st); err != nil {
		logger.Error("Failed to persist sync state", "error", err)
		return err
	}
	return nil
}
