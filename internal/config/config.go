// Package config loads the tool's environment configuration. Values come
// from environment variables (optionally seeded from a .env file) with
// sensible defaults; the document and project root are CLI concerns and
// live in cmd.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the environment-driven settings of a run.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is "text" or "json".
	LogFormat string
	// TypstBin is the typst executable used for running queries.
	TypstBin string
	// HTTPTimeout bounds a single download request.
	HTTPTimeout time.Duration
	// UserAgent is sent with every download request.
	UserAgent string
	// MaxResourceSize caps the size of a single downloaded resource.
	MaxResourceSize int64
}

const (
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultTypstBin    = "typst"
	defaultHTTPTimeout = 60 * time.Second
	defaultUserAgent   = "typst-preprocess/0.1"
	defaultMaxSize     = 256 << 20 // 256 MiB
)

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence.
func Load() (*Config, error) {
	// Missing .env is the normal case, not an error.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		LogLevel:        getEnv("TYPST_PREPROCESS_LOG_LEVEL", defaultLogLevel),
		LogFormat:       getEnv("TYPST_PREPROCESS_LOG_FORMAT", defaultLogFormat),
		TypstBin:        getEnv("TYPST_PREPROCESS_TYPST_BIN", defaultTypstBin),
		HTTPTimeout:     getEnvDuration("TYPST_PREPROCESS_HTTP_TIMEOUT", defaultHTTPTimeout),
		UserAgent:       getEnv("TYPST_PREPROCESS_USER_AGENT", defaultUserAgent),
		MaxResourceSize: getEnvInt64("TYPST_PREPROCESS_MAX_RESOURCE_SIZE", defaultMaxSize),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", c.LogFormat)
	}
	if c.TypstBin == "" {
		return fmt.Errorf("typst binary must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.MaxResourceSize <= 0 {
		return fmt.Errorf("max resource size must be positive, got %d", c.MaxResourceSize)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default when unset.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64 returns an environment variable parsed as int64, or the
// default when unset or unparsable.
func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration returns an environment variable parsed as a duration
// ("30s", "2m"), or the default when unset or unparsable.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
