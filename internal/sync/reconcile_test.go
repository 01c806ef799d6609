package sync

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/catalog-watcher/internal/catalog"
	"github.com/stacklok/catalog-watcher/internal/notify"
	"github.com/stacklok/catalog-watcher/internal/state"
)

var (
	t0 = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(30 * time.Minute)
)

func intPtr(v int) *int {
	return &v
}

func clock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func item(id int, episodes *int) catalog.Item {
	return catalog.Item{ID: id, Title: fmt.Sprintf("Item %d", id), Episodes: episodes}
}

func ids(changes []Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Item.Key())
	}
	return out
}

func TestReconcile_NewItems(t *testing.T) {
	t.Parallel()

	st := state.New()
	batch := []catalog.Item{item(1, intPtr(12)), item(2, nil), item(3, intPtr(1))}

	r := Reconcile(batch, st, ReconcileOptions{Now: clock(t0)})

	assert.Equal(t, []string{"1", "2", "3"}, ids(r.NewEvents))
	assert.Empty(t, r.UpdateEvents)
	assert.Empty(t, r.Unchanged)
	assert.Zero(t, r.Suppressed)
	require.Len(t, r.Records, 3)

	for _, it := range batch {
		rec := r.Records[it.Key()]
		assert.Equal(t, it.Episodes, rec.EpisodeCount, "record count of %s matches the item", it.Key())
		assert.Equal(t, it.Episodes, rec.LatestEpisodeNumber)
		assert.True(t, rec.LastSeenAt.Equal(t0))
		assert.Nil(t, rec.LastUpdatedAt)
		for _, c := range r.NewEvents {
			assert.Equal(t, notify.KindNew, c.Kind)
		}
	}

	// The state itself is untouched until Apply
	assert.Empty(t, st.KnownItems)
	r.Apply(st)
	assert.Len(t, st.KnownItems, 3)
}

func TestReconcile_KnownItems(t *testing.T) {
	t.Parallel()

	lastUpdate := t0.Add(-24 * time.Hour)

	tests := []struct {
		name              string
		stored            *int
		current           *int
		expectUpdate      bool
		expectedCount     *int
		expectLastUpdated *time.Time
	}{
		{
			name:              "higher count is an update",
			stored:            intPtr(5),
			current:           intPtr(6),
			expectUpdate:      true,
			expectedCount:     intPtr(6),
			expectLastUpdated: &t1,
		},
		{
			name:              "equal count is unchanged",
			stored:            intPtr(5),
			current:           intPtr(5),
			expectedCount:     intPtr(5),
			expectLastUpdated: &lastUpdate,
		},
		{
			name:              "lower count is silently stored",
			stored:            intPtr(5),
			current:           intPtr(3),
			expectedCount:     intPtr(3),
			expectLastUpdated: &lastUpdate,
		},
		{
			name:              "absent current count keeps the stored count",
			stored:            intPtr(5),
			current:           nil,
			expectedCount:     intPtr(5),
			expectLastUpdated: &lastUpdate,
		},
		{
			name:              "first observed count is an update",
			stored:            nil,
			current:           intPtr(2),
			expectUpdate:      true,
			expectedCount:     intPtr(2),
			expectLastUpdated: &t1,
		},
		{
			name:              "no count either side",
			stored:            nil,
			current:           nil,
			expectedCount:     nil,
			expectLastUpdated: &lastUpdate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			st := state.New()
			st.MarkInitialized(t0.Add(-48 * time.Hour))
			lu := lastUpdate
			st.KnownItems["7"] = state.KnownItemRecord{
				LastSeenAt:          t0,
				EpisodeCount:        tt.stored,
				LatestEpisodeNumber: tt.stored,
				LastUpdatedAt:       &lu,
			}

			r := Reconcile([]catalog.Item{item(7, tt.current)}, st, ReconcileOptions{Now: clock(t1)})

			assert.Empty(t, r.NewEvents)
			if tt.expectUpdate {
				assert.Equal(t, []string{"7"}, ids(r.UpdateEvents))
				assert.Equal(t, notify.KindUpdated, r.UpdateEvents[0].Kind)
				assert.Empty(t, r.Unchanged)
			} else {
				assert.Empty(t, r.UpdateEvents)
				assert.Equal(t, []string{"7"}, r.Unchanged)
			}

			rec := r.Records["7"]
			assert.Equal(t, tt.expectedCount, rec.EpisodeCount)
			assert.True(t, rec.LastSeenAt.Equal(t1))
			require.NotNil(t, rec.LastUpdatedAt)
			assert.True(t, tt.expectLastUpdated.Equal(*rec.LastUpdatedAt))

			// The stored record is not modified in place
			assert.True(t, st.KnownItems["7"].LastSeenAt.Equal(t0))
		})
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	st := state.New()
	batch := []catalog.Item{item(1, intPtr(3)), item(2, nil), item(3, intPtr(10))}

	first := Reconcile(batch, st, ReconcileOptions{Now: clock(t0)})
	assert.Len(t, first.Events(), 3)
	first.Apply(st)

	second := Reconcile(batch, st, ReconcileOptions{Now: clock(t1)})
	assert.Empty(t, second.Events())
	assert.ElementsMatch(t, []string{"1", "2", "3"}, second.Unchanged)
}

func TestReconcile_FirstRunCap(t *testing.T) {
	t.Parallel()

	batch := make([]catalog.Item, 0, 10)
	for i := 1; i <= 10; i++ {
		batch = append(batch, item(i, intPtr(i)))
	}

	tests := []struct {
		name               string
		opts               ReconcileOptions
		expectedEvents     int
		expectedSuppressed int
	}{
		{"first run with cap 3", ReconcileOptions{FirstRun: true, FirstRunCap: 3}, 3, 7},
		{"first run with default cap", ReconcileOptions{FirstRun: true, FirstRunCap: -1}, DefaultFirstRunCap, 10 - DefaultFirstRunCap},
		{"first run with zero cap", ReconcileOptions{FirstRun: true, FirstRunCap: 0}, 0, 10},
		{"cap above batch size", ReconcileOptions{FirstRun: true, FirstRunCap: 20}, 10, 0},
		{"not a first run", ReconcileOptions{FirstRun: false, FirstRunCap: 3}, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.opts.Now = clock(t0)

			r := Reconcile(batch, state.New(), tt.opts)

			assert.Len(t, r.NewEvents, tt.expectedEvents)
			assert.Equal(t, tt.expectedSuppressed, r.Suppressed)
			assert.Len(t, r.Records, 10, "every new item is recorded")
			if tt.expectedEvents > 0 {
				assert.Equal(t, "1", r.NewEvents[0].Item.Key(), "batch order is kept")
			}
		})
	}
}

func TestReconcile_UpdatesAreNeverCapped(t *testing.T) {
	t.Parallel()

	st := state.New()
	for i := 1; i <= 5; i++ {
		st.KnownItems[fmt.Sprint(i)] = state.KnownItemRecord{LastSeenAt: t0, EpisodeCount: intPtr(1)}
	}
	batch := []catalog.Item{item(1, intPtr(2)), item(2, intPtr(2)), item(3, intPtr(2)), item(4, intPtr(2)), item(5, intPtr(2))}

	r := Reconcile(batch, st, ReconcileOptions{Now: clock(t1), FirstRun: true, FirstRunCap: 1})
	assert.Len(t, r.UpdateEvents, 5)
	assert.Zero(t, r.Suppressed)
}

func TestReconcile_DuplicateIdentity(t *testing.T) {
	t.Parallel()

	batch := []catalog.Item{item(1, intPtr(4)), item(2, nil), item(1, intPtr(9))}
	r := Reconcile(batch, state.New(), ReconcileOptions{Now: clock(t0)})

	assert.Equal(t, []string{"1", "2"}, ids(r.NewEvents))
	require.Len(t, r.Records, 2)
	assert.Equal(t, intPtr(4), r.Records["1"].EpisodeCount)
}

func TestReconcile_EventsOrder(t *testing.T) {
	t.Parallel()

	st := state.New()
	st.KnownItems["10"] = state.KnownItemRecord{LastSeenAt: t0, EpisodeCount: intPtr(1)}
	st.KnownItems["20"] = state.KnownItemRecord{LastSeenAt: t0, EpisodeCount: intPtr(1)}

	batch := []catalog.Item{item(20, intPtr(2)), item(1, nil), item(10, intPtr(2)), item(2, nil)}
	r := Reconcile(batch, st, ReconcileOptions{Now: clock(t1)})

	assert.Equal(t, []string{"1", "2", "20", "10"}, ids(r.Events()))
}

func TestReconcile_NilState(t *testing.T) {
	t.Parallel()

	r := Reconcile([]catalog.Item{item(1, nil)}, nil, ReconcileOptions{})
	assert.Len(t, r.NewEvents, 1)

	st := &state.SyncState{}
	r.Apply(st)
	assert.Contains(t, st.KnownItems, "1")
}
