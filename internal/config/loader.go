package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultPath is the config file read when no path is given. It may be
// absent; any other path must exist.
const DefaultPath = "config.toml"

// Load merges the TOML file at path over Defaults, loads .env if present,
// applies MARKETWATCH_* overrides and normalizes the result. The returned
// Config has not been validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || path != DefaultPath {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	cfg.Normalize()
	return &cfg, nil
}

// applyEnvOverrides overwrites fields from MARKETWATCH_* variables. The
// unprefixed aliases come first so the prefixed names win.
func applyEnvOverrides(cfg *Config) {
	// ── Aliases ──
	setStr(&cfg.Site.BaseURL, "BASE_URL")
	setInt(&cfg.Engine.PollIntervalSeconds, "POLL_INTERVAL_SECONDS")
	setStr(&cfg.Ledger.Path, "STATE_PATH")
	setBool(&cfg.Debug, "DEBUG")
	setStr(&cfg.Notify.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TELEGRAM_CHAT_ID")
	setInt(&cfg.Server.Port, "PORT")

	// ── Site ──
	setStr(&cfg.Site.BaseURL, "MARKETWATCH_SITE_BASE_URL")
	setStr(&cfg.Site.ListPath, "MARKETWATCH_SITE_LIST_PATH")
	setStr(&cfg.Site.DetailPathTemplate, "MARKETWATCH_SITE_DETAIL_PATH_TEMPLATE")
	setStr(&cfg.Site.UserAgent, "MARKETWATCH_SITE_USER_AGENT")
	setFloat64(&cfg.Site.RequestsPerSecond, "MARKETWATCH_SITE_REQUESTS_PER_SECOND")
	setDuration(&cfg.Site.FetchTimeout, "MARKETWATCH_SITE_FETCH_TIMEOUT")

	// ── Engine ──
	setInt(&cfg.Engine.PollIntervalSeconds, "MARKETWATCH_ENGINE_POLL_INTERVAL_SECONDS")
	setInt(&cfg.Engine.MinPollIntervalSeconds, "MARKETWATCH_ENGINE_MIN_POLL_INTERVAL_SECONDS")
	setInt(&cfg.Engine.Concurrency, "MARKETWATCH_ENGINE_CONCURRENCY")
	setInt(&cfg.Engine.HighWaterMark, "MARKETWATCH_ENGINE_HIGH_WATER_MARK")
	setInt(&cfg.Engine.InferClosedAfterMissing, "MARKETWATCH_ENGINE_INFER_CLOSED_AFTER_MISSING")
	setBool(&cfg.Engine.ArchiveOnCompact, "MARKETWATCH_ENGINE_ARCHIVE_ON_COMPACT")
	setBool(&cfg.Engine.DistributedLock, "MARKETWATCH_ENGINE_DISTRIBUTED_LOCK")

	// ── Ledger ──
	setStr(&cfg.Ledger.Backend, "MARKETWATCH_LEDGER_BACKEND")
	setStr(&cfg.Ledger.Path, "MARKETWATCH_LEDGER_PATH")
	setStr(&cfg.Ledger.Key, "MARKETWATCH_LEDGER_KEY")
	setBool(&cfg.Ledger.RestoreBackup, "MARKETWATCH_LEDGER_RESTORE_BACKUP")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MARKETWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETWATCH_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "MARKETWATCH_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "MARKETWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.Host, "MARKETWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MARKETWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MARKETWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MARKETWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MARKETWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MARKETWATCH_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "MARKETWATCH_POSTGRES_RUN_MIGRATIONS")
	setBool(&cfg.Postgres.Audit, "MARKETWATCH_POSTGRES_AUDIT")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MARKETWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MARKETWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MARKETWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "MARKETWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MARKETWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MARKETWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MARKETWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MARKETWATCH_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.BackupCron, "MARKETWATCH_S3_BACKUP_CRON")

	// ── Kafka ──
	setStringSlice(&cfg.Kafka.Brokers, "MARKETWATCH_KAFKA_BROKERS")
	setStr(&cfg.Kafka.Topic, "MARKETWATCH_KAFKA_TOPIC")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MARKETWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MARKETWATCH_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "MARKETWATCH_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "MARKETWATCH_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimitPerMinute, "MARKETWATCH_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MARKETWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MARKETWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MARKETWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.SlackWebhookURL, "MARKETWATCH_NOTIFY_SLACK_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MARKETWATCH_NOTIFY_EVENTS")
	setBool(&cfg.Notify.CommandsEnabled, "MARKETWATCH_NOTIFY_COMMANDS_ENABLED")
	setInt64Slice(&cfg.Notify.CommandChats, "MARKETWATCH_NOTIFY_COMMAND_CHATS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MARKETWATCH_MODE")
	setStr(&cfg.LogLevel, "MARKETWATCH_LOG_LEVEL")
	setBool(&cfg.Debug, "MARKETWATCH_DEBUG")
}

// Typed env helpers. Each only touches dst when the variable is set,
// non-empty and parses.

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setStringSlice(dst *[]string, key string) {
	if parts := splitList(os.Getenv(key)); len(parts) > 0 {
		*dst = parts
	}
}

func setInt64Slice(dst *[]int64, key string) {
	parts := splitList(os.Getenv(key))
	if len(parts) == 0 {
		return
	}
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return
		}
		ids = append(ids, n)
	}
	*dst = ids
}
