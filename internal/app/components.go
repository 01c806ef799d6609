package app

import (
	"github.com/stacklok/catalog-watcher/internal/catalog"
	"github.com/stacklok/catalog-watcher/internal/state"
	"github.com/stacklok/catalog-watcher/internal/sync/coordinator"
	"github.com/stacklok/catalog-watcher/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncCoordinator schedules the background sync cycles
	SyncCoordinator coordinator.Coordinator

	// CatalogClient serves the read-only catalog endpoints
	CatalogClient catalog.Client

	// Store persists the sync state between runs
	Store state.Store

	// Telemetry owns the tracer and meter providers (optional)
	Telemetry *telemetry.Telemetry
}
