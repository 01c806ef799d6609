package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

// Store persists the sync state as a complete snapshot
type Store interface {
	// Load returns the persisted state. A missing or unreadable snapshot is
	// logged and yields an empty state, so Load never fails.
	Load(ctx context.Context) *SyncState

	// Save overwrites the persisted snapshot with st. Failures are
	// syncerr.KindPersistence errors.
	Save(ctx context.Context, st *SyncState) error

	// Close releases any resources held by the store
	Close() error
}

func encode(st *SyncState) ([]byte, error) {
	if st == nil {
		st = New()
	}
	data, err := json.MarshalIndent(st.Clone().normalize(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return data, nil
}

// decode parses a snapshot, falling back to an empty state on bad input
func decode(data []byte, source string) *SyncState {
	if len(data) == 0 {
		slog.Warn("State snapshot is empty, starting fresh", "source", source)
		return New()
	}
	st := &SyncState{}
	if err := json.Unmarshal(data, st); err != nil {
		slog.Warn("State snapshot is corrupt, starting fresh",
			"source", source,
			"error", err)
		return New()
	}
	return st.normalize()
}
