package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CAMPUS_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CAMPUS_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Storage.Driver, "CAMPUS_STORAGE_DRIVER")

	setStr(&cfg.Database.DSN, "CAMPUS_DATABASE_DSN")
	setStr(&cfg.Database.Host, "CAMPUS_DATABASE_HOST")
	setInt(&cfg.Database.Port, "CAMPUS_DATABASE_PORT")
	setStr(&cfg.Database.Database, "CAMPUS_DATABASE_NAME")
	setStr(&cfg.Database.User, "CAMPUS_DATABASE_USER")
	setStr(&cfg.Database.Password, "CAMPUS_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "CAMPUS_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "CAMPUS_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "CAMPUS_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "CAMPUS_DATABASE_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "CAMPUS_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "CAMPUS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CAMPUS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CAMPUS_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CAMPUS_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CAMPUS_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CAMPUS_REDIS_TLS_ENABLED")

	setBool(&cfg.Archive.Enabled, "CAMPUS_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "CAMPUS_ARCHIVE_INTERVAL")
	setStr(&cfg.Archive.Endpoint, "CAMPUS_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "CAMPUS_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "CAMPUS_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "CAMPUS_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "CAMPUS_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "CAMPUS_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "CAMPUS_ARCHIVE_FORCE_PATH_STYLE")

	setInt(&cfg.Server.Port, "CAMPUS_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CAMPUS_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CAMPUS_SERVER_API_KEY")

	setStringSlice(&cfg.Admin.Usernames, "CAMPUS_ADMIN_USERNAMES")

	setStr(&cfg.Notify.TelegramToken, "CAMPUS_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CAMPUS_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CAMPUS_NOTIFY_DISCORD_WEBHOOK_URL")

	setStr(&cfg.LogLevel, "CAMPUS_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
