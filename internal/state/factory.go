package state

import (
	"fmt"

	"github.com/stacklok/catalog-watcher/internal/config"
)

// NewStore creates a Store based on the configured storage type
func NewStore(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeBolt:
		return NewBoltStore(cfg.Storage.Path)
	case config.StorageTypeFile:
		return NewFileStore(cfg.Storage.Path), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}
