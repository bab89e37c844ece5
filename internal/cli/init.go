// Package cli provides common CLI initialization utilities shared by
// cmd/esgdash and cmd/esg-stub.
package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"esgdash/internal/backend"
	"esgdash/internal/config"
	applog "esgdash/internal/log"
)

// ShutdownTimeout bounds how long in-flight requests get to finish.
const ShutdownTimeout = 30 * time.Second

// SetupLogger initializes structured logging at the given level and sets it
// as the default logger.
func SetupLogger(level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Configuration load failed", applog.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// Bootstrap loads .env and the configuration and returns a logger at the
// configured level. Until the configuration is loaded, LOG_LEVEL from the
// environment applies.
func Bootstrap() (*applog.Logger, *config.Config) {
	LoadEnvFile()
	cfg := LoadAndValidateConfig(SetupLogger(os.Getenv("LOG_LEVEL")))
	return SetupLogger(cfg.LogLevel), cfg
}

// InitBackend opens the reference backend's dependencies: the emission
// factors, SQLite storage and the optional AMQP publisher.
// Returns them or exits the process on failure.
func InitBackend(logger *applog.Logger, cfg *config.Config) *backend.Dependencies {
	if err := cfg.ValidateStorage(); err != nil {
		logger.Error("Invalid storage configuration", applog.FieldError, err)
		os.Exit(1)
	}
	deps, err := backend.NewDependencies(backend.DepsConfig{
		SQLiteDBPath: cfg.SQLiteDBPath,
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
		AMQPQueue:    cfg.AMQPQueue,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	return deps
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Server is satisfied by *http.Server and by types embedding it.
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
// cleanup, if non-nil, runs after the server has stopped accepting requests.
func Serve(ctx context.Context, logger *applog.Logger, addr string, srv Server, cleanup func()) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "addr", addr, applog.FieldOperation, applog.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if cleanup != nil {
			cleanup()
		}
		if err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
			return err
		}
		logger.Info("Server stopped gracefully")
		return nil
	})

	return g.Wait()
}
