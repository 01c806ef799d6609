// Package api provides the REST API server of catalog-watcher.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/catalog-watcher/internal/api/common"
	v1 "github.com/stacklok/catalog-watcher/internal/api/v1"
	"github.com/stacklok/catalog-watcher/internal/catalog"
	"github.com/stacklok/catalog-watcher/internal/status"
	"github.com/stacklok/catalog-watcher/internal/versions"
)

// ServerOption configures the API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler serves h on /metrics. A nil handler leaves the route unregistered.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// NewServer creates and configures the HTTP router
func NewServer(client catalog.Client, provider status.Provider, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(provider))
	r.Get("/version", versionHandler)

	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	r.Mount("/v1", v1.Router(client, provider))

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// healthHandler reports liveness
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "ok"}, http.StatusOK)
}

// readinessHandler reports ready once a sync cycle has completed
func readinessHandler(provider status.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s := provider.Status()
		if !s.Ready() {
			common.WriteJSONResponse(w, ReadinessResponse{
				Status: "not ready",
				Phase:  string(s.Phase),
				Reason: notReadyReason(s),
			}, http.StatusServiceUnavailable)
			return
		}

		common.WriteJSONResponse(w, ReadinessResponse{
			Status:       "ready",
			Phase:        string(s.Phase),
			LastSyncTime: s.LastSyncTime,
		}, http.StatusOK)
	}
}

func notReadyReason(s status.SyncStatus) string {
	switch {
	case s.Phase == status.SyncPhaseFailed && s.Message != "":
		return s.Message
	case s.CycleCount == 0:
		return "waiting for the first sync cycle"
	default:
		return "first sync cycle in progress"
	}
}

// versionHandler reports build information
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()
	common.WriteJSONResponse(w, VersionResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	}, http.StatusOK)
}
