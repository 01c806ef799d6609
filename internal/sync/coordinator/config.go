package coordinator

import (
	"github.com/stacklok/catalog-watcher/internal/config"
)

// OptionsFromConfig returns the schedule options described by cfg
func OptionsFromConfig(cfg *config.SyncConfig) []Option {
	if cfg == nil {
		return nil
	}
	return []Option{
		WithInterval(cfg.GetInterval()),
		WithInitialDelay(cfg.GetInitialDelay()),
	}
}
