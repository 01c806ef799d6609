package api

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status       string     `json:"status"`
	Phase        string     `json:"phase,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`
}

// VersionResponse represents the version information response
type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}
