package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/phivault/phivault/internal/app"
	"github.com/phivault/phivault/internal/config"
)

// RunServe starts the long-running key management process: it bootstraps the
// default key set and serves the health and metrics endpoints until a
// SIGINT/SIGTERM arrives or a fatal error occurs.
func RunServe(ctx context.Context, version string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting key manager", slog.String("version", version))

	defer closeContainer(container, logger)

	// Bootstrap: one active key per encryption level. Idempotent, so a
	// restart against an already provisioned database is a no-op.
	keyManager, err := container.KeyManager(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize key manager: %w", err)
	}
	if err := keyManager.EnsureDefaultKeys(ctx, "system:serve"); err != nil {
		return fmt.Errorf("failed to ensure default keys: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		if err := metricsServer.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
	case err := <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		if shutErr := metricsServer.Shutdown(shutdownCtx); shutErr != nil {
			return errors.Join(err, fmt.Errorf("metrics server shutdown: %w", shutErr))
		}
		return err
	}

	return nil
}
