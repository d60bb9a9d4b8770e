// Package config defines the top-level configuration for the campus market
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CAMPUS_* environment variables.
type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Notify   NotifyConfig   `toml:"notify"`
	Seed     SeedConfig     `toml:"seed"`
	LogLevel string         `toml:"log_level"`
}

// StorageConfig selects the storage driver for markets and the bet ledger.
type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `toml:"driver"`
}

// DatabaseConfig holds PostgreSQL connection parameters, used when the
// storage driver is "postgres".
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis is optional: when
// Enabled is false the engine uses an in-process event bus and recomputes the
// count series on every read.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ArchiveConfig controls ledger archival of resolved markets to object
// storage.
type ArchiveConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`

	// S3-compatible endpoint settings.
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey authenticates the gateway to the engine; empty disables the check.
	APIKey string `toml:"api_key"`
}

// AdminConfig names the identities that carry the admin claim. Resolution and
// market creation are gated on that claim.
type AdminConfig struct {
	Usernames []string `toml:"usernames"`
}

// NotifyConfig configures the chat channels that receive market
// announcements. A channel with empty credentials is simply not used.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// SeedConfig lists markets created at startup when the store is empty.
type SeedConfig struct {
	Markets []SeedMarket `toml:"markets"`
}

// SeedMarket is one market seeded at startup.
type SeedMarket struct {
	Title string `toml:"title"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Storage: StorageConfig{
			Driver: "memory",
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "campusmarket",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Interval:       duration{10 * time.Minute},
			Region:         "us-east-1",
			Bucket:         "campusmarket-ledgers",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port: 3001,
		},
		Admin: AdminConfig{
			Usernames: []string{"admin"},
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validDrivers = map[string]bool{
	"memory":   true,
	"postgres": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validDrivers[strings.ToLower(c.Storage.Driver)] {
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: memory, postgres)", c.Storage.Driver))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.ToLower(c.Storage.Driver) == "postgres" {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Database == "" {
				errs = append(errs, "database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when redis is enabled")
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty when archival is enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty when archival is enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(c.Admin.Usernames) == 0 {
		errs = append(errs, "admin: at least one admin username is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
