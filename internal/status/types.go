// Package status describes the observable progress of the sync loop.
package status

import "time"

// SyncPhase represents the current phase of the sync loop
type SyncPhase string

const (
	// SyncPhaseIdle means no cycle has run yet
	SyncPhaseIdle SyncPhase = "Idle"

	// SyncPhaseSyncing means a cycle is in progress
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means the last cycle completed
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means the last cycle failed
	SyncPhaseFailed SyncPhase = "Failed"
)

// CycleCounts are the counters of the last completed cycle
type CycleCounts struct {
	Fetched          int  `json:"fetched" yaml:"fetched"`
	Filtered         int  `json:"filtered" yaml:"filtered"`
	New              int  `json:"new" yaml:"new"`
	Updated          int  `json:"updated" yaml:"updated"`
	Unchanged        int  `json:"unchanged" yaml:"unchanged"`
	Suppressed       int  `json:"suppressed" yaml:"suppressed"`
	Dispatched       int  `json:"dispatched" yaml:"dispatched"`
	DispatchFailures int  `json:"dispatchFailures" yaml:"dispatchFailures"`
	Skipped          bool `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// SyncStatus is a point-in-time snapshot of the sync loop
type SyncStatus struct {
	Phase SyncPhase `json:"phase" yaml:"phase"`

	// Message provides additional information about the phase
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// LastAttempt is the start time of the last cycle
	LastAttempt *time.Time `json:"lastAttempt,omitempty" yaml:"lastAttempt,omitempty"`

	// LastSyncTime is the completion time of the last successful cycle
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty" yaml:"lastSyncTime,omitempty"`

	// AttemptCount is the number of consecutive failed cycles
	AttemptCount int `json:"attemptCount" yaml:"attemptCount"`

	// CycleCount is the number of cycles run since start
	CycleCount int `json:"cycleCount" yaml:"cycleCount"`

	// NextSync is when the next cycle is due
	NextSync *time.Time `json:"nextSync,omitempty" yaml:"nextSync,omitempty"`

	KnownItems    int        `json:"knownItems" yaml:"knownItems"`
	InitializedAt *time.Time `json:"initializedAt,omitempty" yaml:"initializedAt,omitempty"`

	LastResult *CycleCounts `json:"lastResult,omitempty" yaml:"lastResult,omitempty"`
}

// Ready reports whether at least one cycle has completed
func (s SyncStatus) Ready() bool {
	return s.LastSyncTime != nil
}

// Clone returns a deep copy
func (s SyncStatus) Clone() SyncStatus {
	out := s
	out.LastAttempt = cloneTime(s.LastAttempt)
	out.LastSyncTime = cloneTime(s.LastSyncTime)
	out.NextSync = cloneTime(s.NextSync)
	out.InitializedAt = cloneTime(s.InitializedAt)
	if s.LastResult != nil {
		r := *s.LastResult
		out.LastResult = &r
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
