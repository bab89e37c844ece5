package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names an optional YAML file loaded before the environment.
const ConfigFileEnv = "CONFIG_FILE"

type Config struct {
	// Dashboard HTTP server
	Port           string `yaml:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	LogLevel       string `yaml:"log_level"`

	// ESG backend the dashboard talks to
	APIBaseURL string        `yaml:"api_base_url"`
	APITimeout time.Duration `yaml:"api_timeout"`

	// Reference backend (cmd/esg-stub)
	StubPort         string `yaml:"stub_port"`
	SQLiteDBPath     string `yaml:"sqlite_db_path"`
	SyntheticCount   int    `yaml:"synthetic_count"`
	SyntheticSeed    int64  `yaml:"synthetic_seed"`
	ReportSampleSize int    `yaml:"report_sample_size"`

	// AMQP, optional
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:             "8081",
		MaxUploadBytes:   10 << 20,
		LogLevel:         "info",
		APIBaseURL:       "http://localhost:8000",
		APITimeout:       30 * time.Second,
		StubPort:         "8000",
		SQLiteDBPath:     "./data/esg.db",
		SyntheticCount:   100,
		SyntheticSeed:    42,
		ReportSampleSize: 30,
		AMQPExchange:     "esg",
		AMQPQueue:        "scorecards",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.APIBaseURL = strings.TrimRight(getEnv("ESG_API_URL", cfg.APIBaseURL), "/")
	cfg.APITimeout = getEnvDuration("ESG_API_TIMEOUT", cfg.APITimeout)

	cfg.StubPort = getEnv("STUB_PORT", cfg.StubPort)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.SyntheticCount = getEnvInt("SYNTHETIC_COUNT", cfg.SyntheticCount)
	cfg.SyntheticSeed = getEnvInt64("SYNTHETIC_SEED", cfg.SyntheticSeed)
	cfg.ReportSampleSize = getEnvInt("REPORT_SAMPLE_SIZE", cfg.ReportSampleSize)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// Validate validates the configuration and returns an error listing every problem
func (c *Config) Validate() error {
	var errors []string

	for name, port := range map[string]string{"port": c.Port, "stub port": c.StubPort} {
		if p, err := strconv.Atoi(port); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be a number", name, port))
		} else if p < 1 || p > 65535 {
			errors = append(errors, fmt.Sprintf("invalid %s %d: must be between 1 and 65535", name, p))
		}
	}

	if u, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid ESG API URL '%s': %v", c.APIBaseURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid ESG API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	} else if u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid ESG API URL '%s': missing host", c.APIBaseURL))
	}

	if c.APITimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid ESG API timeout %v: must not be negative", c.APITimeout))
	}

	if c.MaxUploadBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be at least 1024 bytes", c.MaxUploadBytes))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.SyntheticCount < 1 || c.SyntheticCount > 10000 {
		errors = append(errors, fmt.Sprintf("invalid synthetic count %d: must be between 1 and 10000", c.SyntheticCount))
	}
	if c.ReportSampleSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report sample size %d: must be at least 1", c.ReportSampleSize))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateStorage checks the SQLite path used by the reference backend and
// creates its directory when missing.
func (c *Config) ValidateStorage() error {
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path cannot be empty")
	}
	dir := filepath.Dir(c.SQLiteDBPath)
	if dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("cannot create SQLite database directory '%s': %w", dir, err)
			}
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
