package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncStatus_Ready(t *testing.T) {
	t.Parallel()

	assert.False(t, SyncStatus{Phase: SyncPhaseIdle}.Ready())
	assert.False(t, SyncStatus{Phase: SyncPhaseFailed, AttemptCount: 2}.Ready())

	now := time.Now()
	assert.True(t, SyncStatus{Phase: SyncPhaseFailed, LastSyncTime: &now}.Ready())
}

func TestSyncStatus_Clone(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := SyncStatus{
		Phase:        SyncPhaseComplete,
		LastSyncTime: &now,
		LastResult:   &CycleCounts{New: 2},
	}

	clone := orig.Clone()
	*clone.LastSyncTime = now.Add(time.Hour)
	clone.LastResult.New = 5

	assert.True(t, orig.LastSyncTime.Equal(now))
	assert.Equal(t, 2, orig.LastResult.New)
	assert.Nil(t, clone.LastAttempt)
}
