// Package state holds the durable record of catalog items seen by the watcher
// and the stores that persist it between runs.
package state

import (
	"maps"
	"time"
)

// KnownItemRecord is what the watcher remembers about one catalog item
type KnownItemRecord struct {
	LastSeenAt time.Time `json:"lastSeenAt"`

	// EpisodeCount is the last observed progress count, nil while unknown
	EpisodeCount *int `json:"episodeCount"`

	// LatestEpisodeNumber mirrors EpisodeCount whenever a count was observed
	LatestEpisodeNumber *int `json:"latestEpisodeNumber,omitempty"`

	// LastUpdatedAt is set when the count last increased
	LastUpdatedAt *time.Time `json:"lastUpdatedAt,omitempty"`
}

// SyncState is the persisted snapshot of everything the watcher knows.
// It is owned by a single goroutine and passed explicitly to whoever needs it.
type SyncState struct {
	// InitializedAt is the completion time of the first successful cycle
	InitializedAt *time.Time `json:"initializedAt,omitempty"`

	KnownItems map[string]KnownItemRecord `json:"knownAnime"`
}

// New returns an empty state
func New() *SyncState {
	return &SyncState{KnownItems: make(map[string]KnownItemRecord)}
}

// IsFirstRun reports whether no cycle has completed yet
func (s *SyncState) IsFirstRun() bool {
	return s.InitializedAt == nil
}

// MarkInitialized records the first completed cycle. Later calls are no-ops.
func (s *SyncState) MarkInitialized(at time.Time) {
	if s.InitializedAt != nil {
		return
	}
	s.InitializedAt = &at
}

// Len returns the number of known items
func (s *SyncState) Len() int {
	if s == nil {
		return 0
	}
	return len(s.KnownItems)
}

// Clone returns a copy that shares no maps with s
func (s *SyncState) Clone() *SyncState {
	if s == nil {
		return New()
	}
	out := &SyncState{KnownItems: make(map[string]KnownItemRecord, len(s.KnownItems))}
	if s.InitializedAt != nil {
		t := *s.InitializedAt
		out.InitializedAt = &t
	}
	maps.Copy(out.KnownItems, s.KnownItems)
	return out
}

// normalize fills in the map for snapshots written without knownAnime
func (s *SyncState) normalize() *SyncState {
	if s.KnownItems == nil {
		s.KnownItems = make(map[string]KnownItemRecord)
	}
	return s
}
