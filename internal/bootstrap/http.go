package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/linkhound/ingest/config"
	httpx "github.com/linkhound/ingest/internal/http"
	"github.com/linkhound/ingest/internal/service"
)

const (
	httpReadTimeout     = 30 * time.Second
	httpWriteTimeout    = 30 * time.Second
	httpIdleTimeout     = 2 * time.Minute
	httpShutdownTimeout = 10 * time.Second
)

// startHTTPServer assembles the admin API handler chain and begins serving
// in a background goroutine. The returned server is used for shutdown only.
func startHTTPServer(cfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) *http.Server {
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	var handler http.Handler = httpx.NewRouter(httpx.RouterServices{
		Jobs:      services.Jobs,
		Profiles:  services.Profiles,
		Links:     services.Links,
		Schedules: services.Schedules,
	})

	// Compression sits innermost so the request log records compressed sizes.
	if cfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel)
		handler = httpx.Compression(httpx.CompressionConfig{Level: cfg.HTTP.CompressionLevel})(handler)
	}
	handler = httpx.Logging(logger)(handler)
	handler = httpx.Recover(logger)(handler)

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// stopHTTPServer drains in-flight requests. Queue listeners are stopped first
// so long-polling claim handlers release their waiters instead of riding out
// the drain timeout.
func stopHTTPServer(ctx context.Context, server *http.Server, jobs *service.JobService, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	logger.Info("shutting down HTTP server")

	if jobs != nil {
		jobs.StopAllListeners()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("HTTP server stopped")
	return nil
}
