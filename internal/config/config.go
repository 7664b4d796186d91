// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/mirovado/firefly-gateway/internal/poll"
)

// Static errors for configuration validation.
var (
	// ErrClientIDRequired is returned when FIREFLY_SERVICES_CLIENT_ID is not set.
	ErrClientIDRequired = errors.New("config: FIREFLY_SERVICES_CLIENT_ID is required")
	// ErrClientSecretRequired is returned when FIREFLY_SERVICES_CLIENT_SECRET is not set.
	ErrClientSecretRequired = errors.New("config: FIREFLY_SERVICES_CLIENT_SECRET is required")
)

// Config holds all configuration for the gateway.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" json:"allowed_origins"`

	// Firefly Services credentials, exchanged at IMS for access tokens
	ClientID     string `env:"FIREFLY_SERVICES_CLIENT_ID, required" json:"-"`     // Masked in JSON
	ClientSecret string `env:"FIREFLY_SERVICES_CLIENT_SECRET, required" json:"-"` // Masked in JSON
	Scopes       string `env:"SCOPES" json:"scopes,omitempty"`

	// Object storage settings
	S3Bucket           string        `env:"S3_BUCKET, default=firefly-images-demo-bucket" json:"s3_bucket"`
	S3Region           string        `env:"S3_REGION, default=us-east-1" json:"s3_region"`
	S3Endpoint         string        `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string        `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	PresignExpiry      time.Duration `env:"PRESIGN_EXPIRY, default=12h" json:"presign_expiry"`

	// Status polling settings
	PollInitialDelay time.Duration `env:"POLL_INITIAL_DELAY, default=5s" json:"poll_initial_delay"`
	PollMaxDelay     time.Duration `env:"POLL_MAX_DELAY, default=30s" json:"poll_max_delay"`
	PollMaxAttempts  int           `env:"POLL_MAX_ATTEMPTS, default=60" json:"poll_max_attempts"`
	PollTimeout      time.Duration `env:"POLL_TIMEOUT, default=10m" json:"poll_timeout"`

	// Thumbnail settings
	ThumbnailMaxPx int `env:"THUMBNAIL_MAX_PX, default=128" json:"thumbnail_max_px"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// defaultAllowedOrigins covers the local dev frontends.
var defaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// Load reads configuration from a .env file (when present) and the
// environment using go-envconfig. It returns an error if required variables
// are not set.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "FIREFLY_SERVICES_CLIENT_ID") {
			return nil, ErrClientIDRequired
		}
		if strings.Contains(err.Error(), "FIREFLY_SERVICES_CLIENT_SECRET") {
			return nil, ErrClientSecretRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = defaultAllowedOrigins
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return ErrClientIDRequired
	}
	if c.ClientSecret == "" {
		return ErrClientSecretRequired
	}
	return nil
}

// PollBackoff returns the wait policy for status polling.
func (c *Config) PollBackoff() poll.Backoff {
	return poll.Backoff{
		Initial: c.PollInitialDelay,
		Max:     c.PollMaxDelay,
		Factor:  poll.DefaultFactor,
		Jitter:  poll.DefaultJitter,
	}
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, AllowedOrigins: %v, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, PresignExpiry: %s, PollInitialDelay: %s, PollMaxDelay: %s, PollMaxAttempts: %d, PollTimeout: %s, ThumbnailMaxPx: %d, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.AllowedOrigins,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.PresignExpiry,
		c.PollInitialDelay,
		c.PollMaxDelay,
		c.PollMaxAttempts,
		c.PollTimeout,
		c.ThumbnailMaxPx,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
