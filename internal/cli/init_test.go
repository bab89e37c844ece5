package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"esgdash/internal/config"
)

func TestBootstrapUsesConfigFileLogLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "esgdash.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.ConfigFileEnv, path)
	t.Setenv("LOG_LEVEL", "")

	logger, cfg := Bootstrap()
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger should be at debug level from the config file")
	}
}

func TestBootstrapEnvOverridesFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "esgdash.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.ConfigFileEnv, path)
	t.Setenv("LOG_LEVEL", "warn")

	logger, _ := Bootstrap()
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("LOG_LEVEL should win over the config file")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be enabled")
	}
}
