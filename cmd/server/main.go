package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/giftapi/internal/config"
	"github.com/JonMunkholm/giftapi/internal/core"
	"github.com/JonMunkholm/giftapi/internal/logging"
	"github.com/JonMunkholm/giftapi/internal/metrics"
	"github.com/JonMunkholm/giftapi/internal/store"
	"github.com/JonMunkholm/giftapi/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"db_max_conns", cfg.Database.MaxConns,
		"executor_core", cfg.Executor.CorePoolSize,
		"executor_max", cfg.Executor.MaxPoolSize,
		"executor_queue", cfg.Executor.QueueCapacity,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	m := metrics.New()

	service, err := core.NewService(st, cfg, core.DefaultKidTypes(), m)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	types := service.KidTypes().Types()
	slog.Info("kid types registered", "count", len(types), "types", types)

	server := web.NewServer(service, cfg, m)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting imports and let running ones finish
		status := service.ExecutorStatus()
		if status.Active > 0 || status.Queued > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active, "queued", status.Queued)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
