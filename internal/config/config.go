package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the client SDK.
type Config struct {
	Env string `env:"KEKAR_ENV" envDefault:"development"`

	// Remote backend. Both values are required for the SDK to leave the
	// unconfigured state; with either missing, gateways degrade to benign
	// empty results instead of crashing.
	BackendURL     string `env:"KEKAR_BACKEND_URL"`
	BackendAnonKey string `env:"KEKAR_BACKEND_ANON_KEY"`

	// OAuth deep-link redirect registered with the backend, and the
	// loopback address the desktop callback listener binds to.
	RedirectURL  string `env:"KEKAR_OAUTH_REDIRECT_URL" envDefault:"kekarapp://auth/callback"`
	CallbackAddr string `env:"KEKAR_CALLBACK_ADDR" envDefault:"127.0.0.1:43110"`

	// Presence heartbeat cadence.
	HeartbeatInterval time.Duration `env:"KEKAR_HEARTBEAT_INTERVAL" envDefault:"30s"`

	// Identity snapshot persistence: "memory", "file" or "redis".
	SnapshotStore string `env:"KEKAR_SNAPSHOT_STORE" envDefault:"file"`
	SnapshotDir   string `env:"KEKAR_SNAPSHOT_DIR"`
	RedisURL      string `env:"REDIS_URL"`
}

// Load reads configuration from environment variables. In development,
// it loads from a .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("heartbeat interval must be positive, got %s", cfg.HeartbeatInterval)
	}

	switch cfg.SnapshotStore {
	case "memory", "file", "redis":
	default:
		return nil, fmt.Errorf("unknown snapshot store %q", cfg.SnapshotStore)
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// BackendConfigured reports whether the remote backend credentials are
// present.
func (c *Config) BackendConfigured() bool {
	return c.BackendURL != "" && c.BackendAnonKey != ""
}
