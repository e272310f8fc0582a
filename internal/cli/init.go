// Package cli provides the initialization steps shared by cmd/tally and
// cmd/tally-import.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/config"
	"tally/internal/ledger"
	"tally/internal/ledger/memory"
	"tally/internal/log"
	"tally/internal/storage"
)

// SetupLogger builds the process logger at the given level and installs it as
// the slog default.
func SetupLogger(level string) *log.Logger {
	return setupLogger(level, os.Stdout)
}

func setupLogger(level string, out io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Output = out
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// Ledger is the store selected by DATA_BACKEND together with its release func.
type Ledger struct {
	ledger.Store
	close func() error
}

func (l *Ledger) Close() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}

// OpenLedger opens the configured ledger backend. The memory backend is
// seeded from SeedDir when set.
func OpenLedger(cfg *config.Config, loc *time.Location, logger *log.Logger) (*Ledger, error) {
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, loc, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		return &Ledger{Store: repo, close: repo.Close}, nil
	case "memory", "":
		if cfg.SeedDir == "" {
			return &Ledger{Store: memory.New(nil, nil)}, nil
		}
		store, err := memory.NewFromFiles(cfg.SeedDir, loc)
		if err != nil {
			return nil, fmt.Errorf("seed memory ledger: %w", err)
		}
		logger.Info("Memory ledger seeded", "dir", cfg.SeedDir)
		return &Ledger{Store: store}, nil
	}
	return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled on SIGINT or SIGTERM; cleanup then runs
// with a context bounded by timeout, and done is closed once it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
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
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
