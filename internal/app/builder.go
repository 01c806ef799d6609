package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/catalog-watcher/internal/api"
	"github.com/stacklok/catalog-watcher/internal/catalog"
	"github.com/stacklok/catalog-watcher/internal/config"
	"github.com/stacklok/catalog-watcher/internal/filtering"
	"github.com/stacklok/catalog-watcher/internal/httpclient"
	"github.com/stacklok/catalog-watcher/internal/notify"
	"github.com/stacklok/catalog-watcher/internal/state"
	pkgsync "github.com/stacklok/catalog-watcher/internal/sync"
	"github.com/stacklok/catalog-watcher/internal/sync/coordinator"
	"github.com/stacklok/catalog-watcher/internal/telemetry"
	"github.com/stacklok/catalog-watcher/internal/versions"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// WatcherAppOption is a function that configures the watcher app builder
type WatcherAppOption func(*watcherAppConfig) error

// watcherAppConfig collects the builder inputs. Every component left nil is
// built from config.
type watcherAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	httpClient    httpclient.Client
	catalogClient catalog.Client
	store         state.Store
	sink          notify.Sink
	syncManager   pkgsync.Manager
	telemetry     *telemetry.Telemetry

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...WatcherAppOption) (*watcherAppConfig, error) {
	cfg := &watcherAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewWatcherApp builds the application from the given options
func NewWatcherApp(ctx context.Context, opts ...WatcherAppOption) (*WatcherApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.telemetry == nil {
		if cfg.config.Telemetry != nil && cfg.config.Telemetry.ServiceVersion == "" {
			cfg.config.Telemetry.ServiceVersion = versions.GetVersionInfo().Version
		}
		cfg.telemetry, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.config.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	// Release whatever was opened if a later step fails
	cleanupNeeded := true
	defer func() {
		if !cleanupNeeded {
			return
		}
		if cfg.store != nil {
			_ = cfg.store.Close()
		}
		_ = cfg.telemetry.Shutdown(context.WithoutCancel(ctx))
	}()

	syncCoordinator, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(ctx, cfg, syncCoordinator)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	return &WatcherApp{
		config: cfg.config,
		components: &AppComponents{
			SyncCoordinator: syncCoordinator,
			CatalogClient:   cfg.catalogClient,
			Store:           cfg.store,
			Telemetry:       cfg.telemetry,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
		syncDone:   make(chan struct{}),
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) WatcherAppOption {
	return func(cfg *watcherAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) WatcherAppOption {
	return func(cfg *watcherAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) WatcherAppOption {
	return func(cfg *watcherAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithHTTPClient sets the client shared by the catalog client and the Discord sink
func WithHTTPClient(c httpclient.Client) WatcherAppOption {
	return func(cfg *watcherAppConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithCatalogClient allows injecting a custom catalog client (for testing)
func WithCatalogClient(c catalog.Client) WatcherAppOption {
	return func(cfg *watcherAppConfig) error {
		cfg.catalogClient = c
		return nil
	}
}

// WithStore allows injecting a custom state store (for testing)
func WithStore(s state.Store) WatcherAppOption {
	return func(cfg *watcherAppConfig) error {
		cfg.store = s
		return nil
	}
}

// WithSink allows injecting a custom notification sink (for testing)
func WithSink(s notify.Sink) WatcherAppOption {
	return func(cfg *watcherAppConfig) error {
		cfg.sink = s
		return nil
	}
}

// WithSyncManager allows injecting a custom sync manager (for testing)
func WithSyncManager(sm pkgsync.Manager) WatcherAppOption {
	return func(cfg *watcherAppConfig) error {
		cfg.syncManager = sm
		return nil
	}
}

// WithTelemetry sets already initialized telemetry providers
func WithTelemetry(t *telemetry.Telemetry) WatcherAppOption {
	return func(cfg *watcherAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// NewCatalogClient builds the catalog client described by cfg
func NewCatalogClient(cfg *config.Config, httpClient httpclient.Client) catalog.Client {
	return catalog.NewClient(httpClient, cfg.Catalog.BaseURL,
		catalog.WithGenreID(cfg.Catalog.GenreID),
		catalog.WithPageSize(cfg.Catalog.PageSize),
		catalog.WithMaxAttempts(cfg.Catalog.MaxAttempts),
	)
}

// buildSyncComponents builds the catalog client, store, sink, manager and coordinator
func buildSyncComponents(_ context.Context, b *watcherAppConfig) (coordinator.Coordinator, error) {
	slog.Info("Initializing sync components")

	if b.httpClient == nil {
		b.httpClient = httpclient.NewDefaultClient(b.config.Catalog.GetRequestTimeout())
	}
	if b.catalogClient == nil {
		b.catalogClient = NewCatalogClient(b.config, b.httpClient)
	}

	if b.store == nil {
		store, err := state.NewStore(b.config)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		b.store = store
	}

	if b.syncManager == nil {
		if b.sink == nil {
			sink, err := notify.NewSink(b.config, b.httpClient)
			if err != nil {
				return nil, fmt.Errorf("failed to create notification sink: %w", err)
			}
			b.sink = sink
		}

		filter, err := filtering.New(b.config.Catalog.Filter.Rules())
		if err != nil {
			return nil, fmt.Errorf("failed to build catalog filter: %w", err)
		}

		syncMetrics, err := telemetry.NewSyncMetrics(b.telemetry.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}

		b.syncManager = pkgsync.NewManager(b.catalogClient, b.store, b.sink,
			pkgsync.WithPagesPerCycle(b.config.Catalog.GetPagesPerCycle()),
			pkgsync.WithFirstRunCap(b.config.Sync.FirstRunCap),
			pkgsync.WithFilter(filter),
			pkgsync.WithMetrics(syncMetrics),
			pkgsync.WithTracerProvider(b.telemetry.TracerProvider()),
		)
	}

	syncCoordinator := coordinator.New(b.syncManager, b.store, coordinator.OptionsFromConfig(&b.config.Sync)...)
	slog.Info("Sync components initialized",
		"interval", b.config.Sync.GetInterval().String(),
		"storage", b.config.GetStorageType(),
		"notification", b.config.Notification.Type)

	return syncCoordinator, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(
	_ context.Context,
	b *watcherAppConfig,
	syncCoordinator coordinator.Coordinator,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
			api.LoggingMiddleware,
		}
	}

	// Prepended so that every request is counted
	httpMetrics, err := telemetry.NewHTTPMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	middlewares := append([]func(http.Handler) http.Handler{httpMetrics.Middleware}, b.middlewares...)

	router := api.NewServer(b.catalogClient, syncCoordinator,
		api.WithMiddlewares(middlewares...),
		api.WithMetricsHandler(b.telemetry.MetricsHandler()),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
