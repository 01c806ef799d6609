package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stacklok/catalog-watcher/internal/config"
	"github.com/stacklok/catalog-watcher/internal/state"
	"github.com/stacklok/catalog-watcher/internal/status"
	pkgsync "github.com/stacklok/catalog-watcher/internal/sync"
)

const defaultInitialDelay = 5 * time.Second

// ErrAlreadyStarted is returned when Start is called twice on the same coordinator
var ErrAlreadyStarted = errors.New("coordinator already started")

// Coordinator schedules sync cycles in the background
type Coordinator interface {
	// Start loads the state and runs cycles until the context is cancelled
	// or Stop is called. It blocks.
	Start(ctx context.Context) error

	// Stop cancels the loop, waits for the in-flight cycle and saves the state
	// one last time. ctx bounds both the wait and the save.
	Stop(ctx context.Context) error

	// Status returns a snapshot of the loop status
	Status() status.SyncStatus
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager pkgsync.Manager
	store   state.Store

	interval     time.Duration
	initialDelay time.Duration
	now          func() time.Time

	// Lifecycle management
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}

	// Owned by the loop goroutine until done is closed
	state *state.SyncState

	statusMu sync.RWMutex
	status   status.SyncStatus
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithInterval sets the delay between cycles, floored at config.MinSyncInterval
func WithInterval(d time.Duration) Option {
	return func(c *defaultCoordinator) {
		c.interval = max(d, config.MinSyncInterval)
	}
}

// WithInitialDelay sets the delay before the first cycle
func WithInitialDelay(d time.Duration) Option {
	return func(c *defaultCoordinator) {
		c.initialDelay = max(d, 0)
	}
}

// WithClock overrides the clock used for status timestamps
func WithClock(now func() time.Time) Option {
	return func(c *defaultCoordinator) {
		c.now = now
	}
}

// New creates a new coordinator with injected dependencies
func New(manager pkgsync.Manager, store state.Store, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		manager:      manager,
		store:        store,
		interval:     config.MinSyncInterval,
		initialDelay: defaultInitialDelay,
		now:          time.Now,
		done:         make(chan struct{}),
		status:       status.SyncStatus{Phase: status.SyncPhaseIdle},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins the background sync loop
func (c *defaultCoordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancelFunc != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		close(c.done)
		slog.Info("Background sync coordinator shutting down")
	}()

	c.state = c.store.Load(loopCtx)
	c.updateStatus(func(s *status.SyncStatus) {
		s.KnownItems = c.state.Len()
		s.InitializedAt = cloneTime(c.state.InitializedAt)
		s.NextSync = timePtr(c.now().Add(c.initialDelay))
	})

	slog.Info("Starting background sync coordinator",
		"known_items", c.state.Len(),
		"first_run", c.state.IsFirstRun(),
		"initial_delay", c.initialDelay.String(),
		"interval", c.interval.String())

	timer := time.NewTimer(c.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-loopCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		case <-timer.C:
			if loopCtx.Err() != nil {
				return nil
			}

			// A started cycle runs to completion even if Stop is called meanwhile
			c.runCycle(context.WithoutCancel(loopCtx))

			timer.Reset(c.interval)
			c.updateStatus(func(s *status.SyncStatus) {
				s.NextSync = timePtr(c.now().Add(c.interval))
			})
		}
	}
}

// Stop gracefully stops the coordinator and persists the final state
func (c *defaultCoordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}

	slog.Info("Stopping sync coordinator")
	cancel()

	select {
	case <-c.done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for sync cycle to finish: %w", ctx.Err())
	}

	if c.state == nil {
		return nil
	}
	if err := c.store.Save(ctx, c.state); err != nil {
		slog.Error("Failed to persist sync state on shutdown", "error", err)
		return err
	}
	slog.Info("Sync state persisted", "known_items", c.state.Len())
	return nil
}

// Status returns a copy of the current status
func (c *defaultCoordinator) Status() status.SyncStatus {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status.Clone()
}

// runCycle runs one cycle and records its outcome. It never panics.
func (c *defaultCoordinator) runCycle(ctx context.Context) {
	c.updateStatus(func(s *status.SyncStatus) {
		s.Phase = status.SyncPhaseSyncing
		s.Message = "Sync in progress"
		s.LastAttempt = timePtr(c.now())
		s.CycleCount++
	})

	result, err := c.safeRunCycle(ctx)

	now := c.now()
	c.updateStatus(func(s *status.SyncStatus) {
		s.KnownItems = c.state.Len()
		s.InitializedAt = cloneTime(c.state.InitializedAt)
		if result != nil {
			s.LastResult = countsOf(result)
		}

		switch {
		case err != nil:
			s.Phase = status.SyncPhaseFailed
			s.Message = err.Error()
			s.AttemptCount++
			slog.Error("Sync cycle failed", "attempt", s.AttemptCount, "error", err)
		case result != nil && result.Skipped && result.FetchError != nil:
			s.Phase = status.SyncPhaseFailed
			s.Message = fmt.Sprintf("Catalog unavailable: %v", result.FetchError)
			s.AttemptCount++
		default:
			s.Phase = status.SyncPhaseComplete
			s.Message = "Sync completed successfully"
			s.LastSyncTime = &now
			s.AttemptCount = 0
		}
	})
}

func (c *defaultCoordinator) safeRunCycle(ctx context.Context) (result *pkgsync.CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("sync cycle panicked: %v", r)
		}
	}()
	return c.manager.RunCycle(ctx, c.state)
}

func (c *defaultCoordinator) updateStatus(fn func(*status.SyncStatus)) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	fn(&c.status)
}

func countsOf(r *pkgsync.CycleResult) *status.CycleCounts {
	return &status.CycleCounts{
		Fetched:          r.Fetched,
		Filtered:         r.Filtered,
		New:              r.New,
		Updated:          r.Updated,
		Unchanged:        r.Unchanged,
		Suppressed:       r.Suppressed,
		Dispatched:       r.Dispatched,
		DispatchFailures: r.DispatchFailures,
		Skipped:          r.Skipped,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return timePtr(*t)
}
