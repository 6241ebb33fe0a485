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

	httpadapter "github.com/couchcryptid/storm-radar-overlay/internal/adapter/http"
	"github.com/couchcryptid/storm-radar-overlay/internal/app"
	"github.com/couchcryptid/storm-radar-overlay/internal/config"
	"github.com/couchcryptid/storm-radar-overlay/internal/observability"
	"github.com/couchcryptid/storm-radar-overlay/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownTracing(shutdownTracing, logger)

	a, err := app.New(cfg, true, logger, metrics)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.Processor, logger)
	sched := scheduler.New(a.Processor, cfg.RefreshInterval, 2*cfg.RadarTimeout, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh loop.
	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
