// Package cli holds the recurring command-line interface and the start-up helpers shared
// by cmd/recurring, cmd/recurring-server and cmd/recurring-worker.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"recurring/internal/backend"
	"recurring/internal/config"
	applog "recurring/internal/log"
	"recurring/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads and validates the configuration.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from cfg and installs it as the slog default.
// The returned function closes the log file, if any.
func SetupLogger(cfg *config.Config, component string) (*applog.Logger, func() error) {
	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	logger, closeFn := applog.New(applog.Config{
		Level:     level,
		Component: component,
		File:      cfg.LogFile,
	})
	applog.SetDefault(logger)
	return logger, closeFn
}

// OpenBackend creates the data backend selected by cfg.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}
	return res, nil
}

// NewService wires a RecurringService over the backend. The backend's exporter, when
// present, is attached before opts are applied.
func NewService(res *backend.BackendResult, opts ...services.Option) *services.RecurringService {
	if res.Exporter != nil {
		opts = append([]services.Option{services.WithExporter(res.Exporter)}, opts...)
	}
	return services.NewRecurringService(res.Source, res.Store, opts...)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After the signal,
// cleanup runs with a context bounded by timeout and done is closed when it returns.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}
