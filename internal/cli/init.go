// Package cli provides common initialization for the pfm binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pfm/internal/config"
	"pfm/internal/log"
	"pfm/internal/storage"
)

// SetupLogger builds the process logger from level and format and makes it
// the default. Unknown levels fall back to info.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	if format != "" {
		cfg.Format = format
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env files for local development. A missing file is not
// an error; production reads the real environment.
func LoadEnvFile(paths ...string) {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	logger = logger.WithComponent(log.ComponentCLI)
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", failure(log.ErrorTypeConfiguration, err)...)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", failure(log.ErrorTypeConfiguration, err)...)
		os.Exit(1)
	}
	return cfg
}

func failure(errorType string, err error) []any {
	return log.NewFields().WithOperation(log.OpStartup).WithErrorType(errorType).WithError(err).ToSlice()
}

// InitSQLite opens the activity journal at dbPath.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.WithComponent(log.ComponentCLI).Error("Failed to initialize SQLite repository",
			append(failure(log.ErrorTypeDatabase, err), "path", dbPath)...)
		os.Exit(1)
	}
	return repo
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled on SIGINT or SIGTERM; done closes once
// cleanup has run or timeout has passed.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	logger = logger.WithComponent(log.ComponentCLI)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer close(done)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown, "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached", log.FieldOperation, log.OpShutdown)
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
