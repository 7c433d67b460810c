package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/pharma-quotes/internal/app"
	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/repository"
	"github.com/joseph-ayodele/pharma-quotes/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.ValidateLLM(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	// The catalog is optional for the daemon: without DB_URL exports carry
	// only extracted data.
	withCatalog := cfg.Database.DSN != ""
	if withCatalog {
		if err := cfg.Validate(); err != nil {
			logger.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("DB_URL not set, price comparison disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, withCatalog, logger)
	if err != nil {
		logger.Error("failed to build quote flow", "error", err)
		os.Exit(1)
	}
	if err := a.Sessions.Start(); err != nil {
		logger.Error("failed to start session sweeper", "error", err)
		os.Exit(1)
	}

	var check server.Checker
	if a.DB != nil {
		db := a.DB
		check = func(ctx context.Context) error {
			return repository.HealthCheck(ctx, db, 3*time.Second, logger)
		}
	}

	srv := server.New(server.Config{
		HTTPAddr:       cfg.Server.HTTPAddr,
		GRPCAddr:       cfg.Server.GRPCAddr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, a.Quotes, check, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server shutdown failed", "error", err)
	}
	a.Close(shutdownCtx, logger)
	logger.Info("stopped")
}
