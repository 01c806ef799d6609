package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	watcher "github.com/stacklok/catalog-watcher/internal/app"
	"github.com/stacklok/catalog-watcher/internal/config"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync loop and the HTTP API",
		Long: `Run the periodic catalog sync together with the HTTP API.

Configuration is read from an optional YAML file (--config) and from
CATALOG_WATCHER_* environment variables. The legacy variable names
(JIKAN_BASE, DISCORD_WEBHOOK_URL, STATE_FILE, ...) are also honored.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", ":8080", "Address to listen on")
	cmd.Flags().String("config", "", "Path to configuration file (YAML format)")

	return cmd
}

// loadConfig loads the configuration from the --config flag and the environment
func loadConfig(cmd *cobra.Command, opts ...config.Option) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}

	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	slog.Info("Loaded configuration",
		"base_url", cfg.Catalog.BaseURL,
		"genre_id", cfg.Catalog.GenreID,
		"interval", cfg.Sync.GetInterval().String(),
		"storage", cfg.GetStorageType(),
		"notification", cfg.Notification.Type)

	watcherApp, err := watcher.NewWatcherApp(ctx,
		watcher.WithConfig(cfg),
		watcher.WithAddress(address),
	)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- watcherApp.Start()
	}()

	var startErr error
	select {
	case <-ctx.Done():
	case startErr = <-errChan:
	}

	if err := watcherApp.Stop(defaultGracefulTimeout); err != nil {
		slog.Error("Shutdown with errors", "error", err)
		return errors.Join(startErr, err)
	}
	return startErr
}
