// Package app assembles the catalog watcher and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/catalog-watcher/internal/config"
)

// WatcherApp runs the sync coordinator next to the HTTP API
type WatcherApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	started    atomic.Bool
	syncDone   chan struct{}
}

// Start runs the sync coordinator and the HTTP server. It blocks until the
// server stops. A server failure also cancels the sync loop.
func (app *WatcherApp) Start() error {
	if !app.started.CompareAndSwap(false, true) {
		return fmt.Errorf("app already started")
	}

	g, gctx := errgroup.WithContext(app.ctx)

	g.Go(func() error {
		defer close(app.syncDone)
		if err := app.components.SyncCoordinator.Start(gctx); err != nil {
			slog.Error("Sync coordinator failed", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("Server listening", "address", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Stop stops the coordinator, which waits for the running cycle and saves the
// state, then shuts the HTTP server down and releases the store and telemetry.
// timeout bounds the whole sequence.
func (app *WatcherApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.components.SyncCoordinator.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop sync coordinator: %w", err))
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if app.started.Load() {
		select {
		case <-app.syncDone:
		case <-shutdownCtx.Done():
		}
	}

	if app.components.Store != nil {
		if err := app.components.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close state store: %w", err))
		}
	}
	if app.components.Telemetry != nil {
		if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down telemetry: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	slog.Info("Shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *WatcherApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *WatcherApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
