// Package cli holds the startup steps shared by cmd/famfin and cmd/famfin-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"famfin/internal/config"
	"famfin/internal/log"
	"famfin/internal/storage"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads .env for local development. A missing file is ignored.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and makes it the slog
// default. An unknown level falls back to info; Validate reports it later.
func SetupLogger(component string) *log.Logger {
	level, _ := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger := log.New(log.Config{Level: level, Component: component, Output: os.Stdout})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and exits on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens and migrates the database or exits.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase,
			"path", dbPath)
		os.Exit(1)
	}
	return repo
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout and done is
// closed once it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)
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

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
