package status

// Provider exposes the latest sync status
//
//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks github.com/stacklok/catalog-watcher/internal/status Provider
type Provider interface {
	Status() SyncStatus
}
