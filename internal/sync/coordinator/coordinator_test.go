package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/catalog-watcher/internal/config"
	"github.com/stacklok/catalog-watcher/internal/state"
	statemocks "github.com/stacklok/catalog-watcher/internal/state/mocks"
	"github.com/stacklok/catalog-watcher/internal/status"
	pkgsync "github.com/stacklok/catalog-watcher/internal/sync"
	syncmocks "github.com/stacklok/catalog-watcher/internal/sync/mocks"
)

const waitFor = 2 * time.Second

// start runs c.Start in the background and returns its result channel
func start(t *testing.T, c Coordinator) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Start(context.Background())
	}()
	return errCh
}

// fastCoordinator has no initial delay and a short interval
func fastCoordinator(manager pkgsync.Manager, store state.Store) *defaultCoordinator {
	c := New(manager, store, WithInitialDelay(0)).(*defaultCoordinator)
	c.interval = 10 * time.Millisecond
	return c
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		opts          []Option
		expectedIvl   time.Duration
		expectedDelay time.Duration
	}{
		{
			name:          "defaults",
			expectedIvl:   config.MinSyncInterval,
			expectedDelay: 5 * time.Second,
		},
		{
			name:          "interval below the floor is raised",
			opts:          []Option{WithInterval(10 * time.Second)},
			expectedIvl:   time.Minute,
			expectedDelay: 5 * time.Second,
		},
		{
			name:          "configured values",
			opts:          []Option{WithInterval(30 * time.Minute), WithInitialDelay(time.Second)},
			expectedIvl:   30 * time.Minute,
			expectedDelay: time.Second,
		},
		{
			name:          "negative delay is zero",
			opts:          []Option{WithInitialDelay(-time.Second)},
			expectedIvl:   time.Minute,
			expectedDelay: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := New(nil, nil, tt.opts...).(*defaultCoordinator)
			assert.Equal(t, tt.expectedIvl, c.interval)
			assert.Equal(t, tt.expectedDelay, c.initialDelay)
			assert.Equal(t, status.SyncPhaseIdle, c.Status().Phase)
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	t.Parallel()

	assert.Nil(t, OptionsFromConfig(nil))

	c := New(nil, nil, OptionsFromConfig(&config.SyncConfig{IntervalMinutes: 45, InitialDelay: "2s"})...).(*defaultCoordinator)
	assert.Equal(t, 45*time.Minute, c.interval)
	assert.Equal(t, 2*time.Second, c.initialDelay)
}

func TestCoordinator_Stop_BeforeStart(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	c := New(syncmocks.NewMockManager(ctrl), statemocks.NewMockStore(ctrl))

	// No cycle ran and no state is owned, so nothing is saved
	assert.NoError(t, c.Stop(context.Background()))
}

func TestCoordinator_FirstCycleAndFinalSave(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	manager := syncmocks.NewMockManager(ctrl)
	store := statemocks.NewMockStore(ctrl)

	st := state.New()
	ran := make(chan struct{})

	store.EXPECT().Load(gomock.Any()).Return(st)
	manager.EXPECT().RunCycle(gomock.Any(), st).
		DoAndReturn(func(_ context.Context, s *state.SyncState) (*pkgsync.CycleResult, error) {
			s.KnownItems["1"] = state.KnownItemRecord{LastSeenAt: time.Now()}
			s.MarkInitialized(time.Now())
			close(ran)
			return &pkgsync.CycleResult{FirstRun: true, Fetched: 1, New: 1, Dispatched: 1}, nil
		})
	store.EXPECT().Save(gomock.Any(), st).Return(nil)

	c := New(manager, store, WithInitialDelay(10*time.Millisecond))
	errCh := start(t, c)

	select {
	case <-ran:
	case <-time.After(waitFor):
		t.Fatal("first cycle did not run")
	}

	require.Eventually(t, func() bool {
		return c.Status().Phase == status.SyncPhaseComplete
	}, waitFor, 5*time.Millisecond)

	s := c.Status()
	assert.True(t, s.Ready())
	assert.Equal(t, 1, s.KnownItems)
	assert.Equal(t, 1, s.CycleCount)
	assert.NotNil(t, s.InitializedAt)
	require.NotNil(t, s.LastResult)
	assert.Equal(t, 1, s.LastResult.Dispatched)
	assert.NotNil(t, s.NextSync)

	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, <-errCh)
}

func TestCoordinator_FailuresDoNotStopTheLoop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	manager := syncmocks.NewMockManager(ctrl)
	store := statemocks.NewMockStore(ctrl)
	store.EXPECT().Load(gomock.Any()).Return(state.New())
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	recovered := make(chan struct{})
	gomock.InOrder(
		manager.EXPECT().RunCycle(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, *state.SyncState) (*pkgsync.CycleResult, error) {
				panic("boom")
			}),
		manager.EXPECT().RunCycle(gomock.Any(), gomock.Any()).
			Return(&pkgsync.CycleResult{Dispatched: 1}, errors.New("disk full")),
		manager.EXPECT().RunCycle(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, *state.SyncState) (*pkgsync.CycleResult, error) {
				close(recovered)
				return &pkgsync.CycleResult{}, nil
			}),
		manager.EXPECT().RunCycle(gomock.Any(), gomock.Any()).
			Return(&pkgsync.CycleResult{}, nil).AnyTimes(),
	)

	c := fastCoordinator(manager, store)
	errCh := start(t, c)

	select {
	case <-recovered:
	case <-time.After(waitFor):
		t.Fatal("loop did not survive failed cycles")
	}

	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, <-errCh)

	s := c.Status()
	assert.GreaterOrEqual(t, s.CycleCount, 3)
	assert.Equal(t, status.SyncPhaseComplete, s.Phase)
	assert.Zero(t, s.AttemptCount, "a success resets the failure count")
}

func TestCoordinator_OneCycleInFlight(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	manager := syncmocks.NewMockManager(ctrl)
	store := statemocks.NewMockStore(ctrl)
	store.EXPECT().Load(gomock.Any()).Return(state.New())
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	const cycleTime = 30 * time.Millisecond

	var (
		inFlight atomic.Int32
		peak     atomic.Int32
		mu       sync.Mutex
		starts   []time.Time
		ends     []time.Time
	)
	manager.EXPECT().RunCycle(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *state.SyncState) (*pkgsync.CycleResult, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()

			time.Sleep(cycleTime)

			mu.Lock()
			ends = append(ends, time.Now())
			mu.Unlock()
			inFlight.Add(-1)
			return &pkgsync.CycleResult{}, nil
		}).AnyTimes()

	// The interval is shorter than a cycle
	c := fastCoordinator(manager, store)
	errCh := start(t, c)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ends) >= 4
	}, waitFor, 5*time.Millisecond)

	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, <-errCh)

	assert.Equal(t, int32(1), peak.Load())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, len(starts), len(ends))
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(ends[i-1])
		assert.GreaterOrEqual(t, gap, c.interval,
			"cycle %d started %s after the previous one returned", i, gap)
	}
}

func TestCoordinator_FailedStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		result  *pkgsync.CycleResult
		err     error
		message string
	}{
		{
			name:    "panic",
			message: "sync cycle panicked",
		},
		{
			name:    "persistence failure",
			result:  &pkgsync.CycleResult{},
			err:     errors.New("disk full"),
			message: "disk full",
		},
		{
			name:    "catalog unavailable",
			result:  &pkgsync.CycleResult{Skipped: true, FetchError: errors.New("503")},
			message: "Catalog unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			manager := syncmocks.NewMockManager(ctrl)
			call := manager.EXPECT().RunCycle(gomock.Any(), gomock.Any())
			if tt.result == nil && tt.err == nil {
				call.DoAndReturn(func(context.Context, *state.SyncState) (*pkgsync.CycleResult, error) {
					panic("boom")
				})
			} else {
				call.Return(tt.result, tt.err)
			}
			call.Times(2)

			c := New(manager, nil).(*defaultCoordinator)
			c.state = state.New()
			c.runCycle(context.Background())
			c.runCycle(context.Background())

			s := c.Status()
			assert.Equal(t, status.SyncPhaseFailed, s.Phase)
			assert.Contains(t, s.Message, tt.message)
			assert.Equal(t, 2, s.AttemptCount)
			assert.False(t, s.Ready())
		})
	}
}

func TestCoordinator_StopWaitsForInFlightCycle(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	manager := syncmocks.NewMockManager(ctrl)
	store := statemocks.NewMockStore(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	var cycleCtxErr error

	store.EXPECT().Load(gomock.Any()).Return(state.New())
	gomock.InOrder(
		manager.EXPECT().RunCycle(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ *state.SyncState) (*pkgsync.CycleResult, error) {
				close(started)
				<-release
				cycleCtxErr = ctx.Err()
				return &pkgsync.CycleResult{}, nil
			}),
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
	)

	c := fastCoordinator(manager, store)
	errCh := start(t, c)
	<-started

	stopped := make(chan error, 1)
	go func() {
		stopped <- c.Stop(context.Background())
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-stopped)
	require.NoError(t, <-errCh)
	assert.NoError(t, cycleCtxErr, "the in-flight cycle is not cancelled")
}

func TestCoordinator_StopTimeout(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	manager := syncmocks.NewMockManager(ctrl)
	store := statemocks.NewMockStore(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	store.EXPECT().Load(gomock.Any()).Return(state.New())
	manager.EXPECT().RunCycle(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *state.SyncState) (*pkgsync.CycleResult, error) {
			close(started)
			<-release
			return &pkgsync.CycleResult{}, nil
		})

	c := fastCoordinator(manager, store)
	errCh := start(t, c)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Stop(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-errCh)
}

func TestCoordinator_StartTwice(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	store := statemocks.NewMockStore(ctrl)
	store.EXPECT().Load(gomock.Any()).Return(state.New())
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	c := New(syncmocks.NewMockManager(ctrl), store, WithInitialDelay(time.Hour))
	errCh := start(t, c)

	require.Eventually(t, func() bool {
		return c.Status().NextSync != nil
	}, waitFor, 5*time.Millisecond)

	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, <-errCh)
}

func TestCoordinator_SaveFailureOnStop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	store := statemocks.NewMockStore(ctrl)
	store.EXPECT().Load(gomock.Any()).Return(state.New())
	saveErr := errors.New("read-only file system")
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(saveErr)

	c := New(syncmocks.NewMockManager(ctrl), store, WithInitialDelay(time.Hour))
	errCh := start(t, c)

	require.Eventually(t, func() bool {
		return c.Status().NextSync != nil
	}, waitFor, 5*time.Millisecond)

	assert.ErrorIs(t, c.Stop(context.Background()), saveErr)
	require.NoError(t, <-errCh)
}
