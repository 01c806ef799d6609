package sync

import (
	"time"

	"github.com/stacklok/catalog-watcher/internal/catalog"
	"github.com/stacklok/catalog-watcher/internal/notify"
	"github.com/stacklok/catalog-watcher/internal/state"
)

// DefaultFirstRunCap bounds new-item events emitted before the state is initialized
const DefaultFirstRunCap = 3

// ReconcileOptions controls a single reconciliation
type ReconcileOptions struct {
	// Now is the clock used for record timestamps, time.Now when nil
	Now func() time.Time

	// FirstRun enables the cap on new-item events
	FirstRun bool

	// FirstRunCap is the maximum number of new-item events on a first run.
	// Zero suppresses them all; negative values mean DefaultFirstRunCap.
	FirstRunCap int
}

// Change is a classified item that warrants a notification
type Change struct {
	Kind notify.Kind
	Item catalog.Item
}

// Reconciliation is the outcome of diffing one batch against the state.
// It is a pure delta: nothing is written until Apply is called.
type Reconciliation struct {
	NewEvents    []Change
	UpdateEvents []Change

	// Unchanged lists the identities that produced no event
	Unchanged []string

	// Suppressed counts new-item events dropped by the first-run cap
	Suppressed int

	// Records holds the record to store for every item of the batch
	Records map[string]state.KnownItemRecord
}

// Reconcile classifies every item of batch as new, updated or unchanged
// relative to st, without mutating st.
//
// A known item is updated when a count is observed and either no count was
// stored or the observed count is strictly greater. A lower observed count
// replaces the stored one without an event.
func Reconcile(batch []catalog.Item, st *state.SyncState, opts ReconcileOptions) *Reconciliation {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	at := now()

	var known map[string]state.KnownItemRecord
	if st != nil {
		known = st.KnownItems
	}

	r := &Reconciliation{Records: make(map[string]state.KnownItemRecord, len(batch))}

	for _, item := range batch {
		id := item.Key()
		if _, dup := r.Records[id]; dup {
			continue
		}
		current := copyInt(item.Episodes)

		prev, ok := known[id]
		if !ok {
			r.Records[id] = state.KnownItemRecord{
				LastSeenAt:          at,
				EpisodeCount:        current,
				LatestEpisodeNumber: copyInt(current),
			}
			r.NewEvents = append(r.NewEvents, Change{Kind: notify.KindNew, Item: item})
			continue
		}

		rec := prev
		rec.LastSeenAt = at

		switch {
		case current != nil && (prev.EpisodeCount == nil || *current > *prev.EpisodeCount):
			rec.EpisodeCount = current
			rec.LatestEpisodeNumber = copyInt(current)
			updatedAt := at
			rec.LastUpdatedAt = &updatedAt
			r.UpdateEvents = append(r.UpdateEvents, Change{Kind: notify.KindUpdated, Item: item})
		case current != nil:
			// Equal or lower count, keep lastUpdatedAt
			rec.EpisodeCount = current
			rec.LatestEpisodeNumber = copyInt(current)
			r.Unchanged = append(r.Unchanged, id)
		default:
			r.Unchanged = append(r.Unchanged, id)
		}
		r.Records[id] = rec
	}

	if opts.FirstRun {
		limit := opts.FirstRunCap
		if limit < 0 {
			limit = DefaultFirstRunCap
		}
		if len(r.NewEvents) > limit {
			r.Suppressed = len(r.NewEvents) - limit
			r.NewEvents = r.NewEvents[:limit]
		}
	}

	return r
}

// Apply writes the records of the reconciliation into st
func (r *Reconciliation) Apply(st *state.SyncState) {
	if st.KnownItems == nil {
		st.KnownItems = make(map[string]state.KnownItemRecord, len(r.Records))
	}
	for id, rec := range r.Records {
		st.KnownItems[id] = rec
	}
}

// Events returns the new-item events followed by the update events
func (r *Reconciliation) Events() []Change {
	out := make([]Change, 0, len(r.NewEvents)+len(r.UpdateEvents))
	out = append(out, r.NewEvents...)
	return append(out, r.UpdateEvents...)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
