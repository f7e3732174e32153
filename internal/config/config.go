// Package config provides configuration for the candle sync application,
// loaded from an optional JSON file with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// AppConfig is the complete application configuration.
type AppConfig struct {
	Storage  StorageConfig  `json:"storage"`
	Exchange ExchangeConfig `json:"exchange"`
	Sync     SyncConfig     `json:"sync"`
	Logging  LoggingConfig  `json:"logging"`
}

// StorageConfig configures the SQLite backend.
type StorageConfig struct {
	Path string `json:"path" env:"STORAGE_PATH"` // database file path
}

// ExchangeConfig configures the Coinbase client.
type ExchangeConfig struct {
	RateLimit      int    `json:"rate_limit" env:"RATE_LIMIT"`                // requests per second
	TimeoutSeconds int    `json:"timeout_seconds" env:"HTTP_TIMEOUT_SECONDS"` // per-request timeout
	BaseURL        string `json:"base_url" env:"EXCHANGE_BASE_URL"`           // override for tests
}

// SyncConfig configures the fetch orchestrator's retry policy.
type SyncConfig struct {
	RetryAttempts int `json:"retry_attempts" env:"RETRY_ATTEMPTS"`         // attempts per range
	RetryWaitSecs int `json:"retry_wait_seconds" env:"RETRY_WAIT_SECONDS"` // fixed delay between attempts
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`             // debug, info, warn, error
	Format     string `json:"format" env:"LOG_FORMAT"`           // json, text
	Output     string `json:"output" env:"LOG_OUTPUT"`           // stdout, stderr, file
	FilePath   string `json:"file_path" env:"LOG_FILE_PATH"`     // when output is "file"
	MaxSizeMB  int    `json:"max_size_mb" env:"LOG_MAX_SIZE_MB"` // rotation threshold
	MaxBackups int    `json:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `json:"max_age_days" env:"LOG_MAX_AGE_DAYS"`
	Compress   bool   `json:"compress" env:"LOG_COMPRESS"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() *AppConfig {
	return &AppConfig{
		Storage: StorageConfig{
			Path: "coinbase_ohlc.sqlite3",
		},
		Exchange: ExchangeConfig{
			RateLimit:      9,
			TimeoutSeconds: 3,
		},
		Sync: SyncConfig{
			RetryAttempts: 3,
			RetryWaitSecs: 3,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration from defaults, then the JSON file at path
// (if it exists), then environment variables, in that precedence order.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file falls back to defaults.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration.
func (c *AppConfig) applyEnv() {
	setString(&c.Storage.Path, "STORAGE_PATH")
	setInt(&c.Exchange.RateLimit, "RATE_LIMIT")
	setInt(&c.Exchange.TimeoutSeconds, "HTTP_TIMEOUT_SECONDS")
	setString(&c.Exchange.BaseURL, "EXCHANGE_BASE_URL")
	setInt(&c.Sync.RetryAttempts, "RETRY_ATTEMPTS")
	setInt(&c.Sync.RetryWaitSecs, "RETRY_WAIT_SECONDS")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Logging.Output, "LOG_OUTPUT")
	setString(&c.Logging.FilePath, "LOG_FILE_PATH")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *AppConfig) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("config: storage path cannot be empty")
	}
	if c.Exchange.RateLimit <= 0 {
		return fmt.Errorf("config: exchange rate limit must be positive, got %d", c.Exchange.RateLimit)
	}
	if c.Exchange.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: exchange timeout must be positive, got %d", c.Exchange.TimeoutSeconds)
	}
	if c.Sync.RetryAttempts <= 0 {
		return fmt.Errorf("config: retry attempts must be positive, got %d", c.Sync.RetryAttempts)
	}
	if c.Sync.RetryWaitSecs < 0 {
		return fmt.Errorf("config: retry wait cannot be negative, got %d", c.Sync.RetryWaitSecs)
	}
	switch c.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if c.Logging.FilePath == "" {
			return fmt.Errorf("config: log file path is required when output is \"file\"")
		}
	default:
		return fmt.Errorf("config: unknown log output %q", c.Logging.Output)
	}
	return nil
}

// RetryWait returns the fixed delay between retry attempts.
func (c *SyncConfig) RetryWait() time.Duration {
	return time.Duration(c.RetryWaitSecs) * time.Second
}

// Timeout returns the per-request HTTP timeout.
func (c *ExchangeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
