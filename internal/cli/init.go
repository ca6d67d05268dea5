// Package cli provides common initialization utilities shared by
// cmd/fintrack and cmd/fintrack-monitor.
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

	"fintrack/internal/backend"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// SetupLogger builds the process logger at the configured level and sets
// it as the slog default.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *applog.Logger {
	logCfg := applog.DefaultConfig()
	logCfg.Component = component
	if out != nil {
		logCfg.Output = out
	}
	if cfg != nil {
		logCfg.Level = cfg.Level()
	}
	logger := applog.New(logCfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitBackend builds the configured data backend. onAuthExpired runs when
// the API rejects the credential.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config, onAuthExpired func()) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bcfg.OnAuthExpired = onAuthExpired
	return backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
}

// InitSQLite opens the snapshot store. An empty path disables persistence
// and returns a nil repository.
func InitSQLite(logger *applog.Logger, dbPath string, retention int) (*storage.SQLiteRepository, error) {
	if dbPath == "" {
		logger.Info("Snapshot persistence disabled")
		return nil, nil
	}
	repo, err := storage.NewSQLiteRepository(dbPath, storage.WithRetention(retention))
	if err != nil {
		return nil, fmt.Errorf("initialize snapshot store at %s: %w", dbPath, err)
	}
	return repo, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout; the returned
// channel closes once cleanup has returned or the timeout elapsed.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), applog.FieldOperation, applog.OpShutdown)
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

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
