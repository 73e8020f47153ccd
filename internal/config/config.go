// Package config defines the marketwatch configuration, its defaults and
// validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by MARKETWATCH_* environment variables.
type Config struct {
	Site     SiteConfig     `toml:"site"`
	Engine   EngineConfig   `toml:"engine"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
	Debug    bool           `toml:"debug"`
}

// SiteConfig describes the scraped market site.
type SiteConfig struct {
	BaseURL            string   `toml:"base_url"`
	ListPath           string   `toml:"list_path"`
	DetailPathTemplate string   `toml:"detail_path_template"`
	MarketPathHint     string   `toml:"market_path_hint"`
	UserAgent          string   `toml:"user_agent"`
	RequestsPerSecond  float64  `toml:"requests_per_second"`
	FetchTimeout       duration `toml:"fetch_timeout"`
}

// EngineConfig tunes the reconciliation loop.
type EngineConfig struct {
	PollIntervalSeconds     int      `toml:"poll_interval_seconds"`
	MinPollIntervalSeconds  int      `toml:"min_poll_interval_seconds"`
	Concurrency             int      `toml:"concurrency"`
	NotifyTimeout           duration `toml:"notify_timeout"`
	HighWaterMark           int      `toml:"high_water_mark"`
	InferClosedAfterMissing int      `toml:"infer_closed_after_missing"`
	ArchiveOnCompact        bool     `toml:"archive_on_compact"`
	DistributedLock         bool     `toml:"distributed_lock"`
}

// PollInterval returns the effective poll interval after the floor clamp.
func (e EngineConfig) PollInterval() time.Duration {
	secs := max(e.PollIntervalSeconds, e.MinPollIntervalSeconds)
	return time.Duration(secs) * time.Second
}

// LedgerConfig selects the ledger backend. Path applies to file and sqlite;
// Key names the Redis hash or Postgres row.
type LedgerConfig struct {
	Backend       string `toml:"backend"`
	Path          string `toml:"path"`
	Key           string `toml:"key"`
	RestoreBackup bool   `toml:"restore_backup"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables
// every Redis-backed feature.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// PostgresConfig holds PostgreSQL connection parameters. DSN or Host
// enables it.
type PostgresConfig struct {
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
	Audit         bool   `toml:"audit"`
}

// Enabled reports whether Postgres is configured.
func (p PostgresConfig) Enabled() bool { return p.DSN != "" || p.Host != "" }

// S3Config holds object storage parameters for backups and archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	BackupCron     string `toml:"backup_cron"`
}

// KafkaConfig enables the Kafka announcement sink when Brokers is set.
type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// ServerConfig configures the HTTP control API.
type ServerConfig struct {
	Enabled            bool     `toml:"enabled"`
	Port               int      `toml:"port"`
	APIKey             string   `toml:"api_key"`
	CORSOrigins        []string `toml:"cors_origins"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
}

// NotifyConfig configures announcement delivery.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	SlackWebhookURL   string   `toml:"slack_webhook_url"`
	Events            []string `toml:"events"`
	CommandsEnabled   bool     `toml:"commands_enabled"`
	CommandChats      []int64  `toml:"command_chats"`
}

// duration wraps time.Duration for TOML text decoding ("30s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config with the built-in defaults.
func Defaults() Config {
	return Config{
		Site: SiteConfig{
			ListPath:           "/",
			DetailPathTemplate: "/market?id={id}",
			MarketPathHint:     "market",
			UserAgent:          "marketwatch/1.0",
			RequestsPerSecond:  2,
			FetchTimeout:       duration{30 * time.Second},
		},
		Engine: EngineConfig{
			PollIntervalSeconds:    60,
			MinPollIntervalSeconds: 5,
			Concurrency:            1,
			NotifyTimeout:          duration{15 * time.Second},
			HighWaterMark:          2000,
			ArchiveOnCompact:       true,
			DistributedLock:        true,
		},
		Ledger: LedgerConfig{
			Backend: "file",
			Path:    "data/state.json",
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "marketwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
			Audit:         true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "marketwatch",
			ForcePathStyle: true,
			BackupCron:     "0 * * * *",
		},
		Kafka: KafkaConfig{
			Topic: "marketwatch.announcements",
		},
		Server: ServerConfig{
			Enabled:            true,
			Port:               8080,
			RateLimitPerMinute: 120,
		},
		Notify: NotifyConfig{
			CommandsEnabled: true,
		},
		Mode:     "watch",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"watch":  true,
	"once":   true,
	"status": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"file":     true,
	"sqlite":   true,
	"postgres": true,
	"redis":    true,
	"memory":   true,
}

var validEvents = map[string]bool{
	"market_open":     true,
	"market_closed":   true,
	"market_resolved": true,
	"market_trending": true,
}

// Normalize clamps the poll interval to its floor and lowercases enums.
// Load calls it; Validate assumes it has run.
func (c *Config) Normalize() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")
	if c.Debug {
		c.LogLevel = "debug"
	}
	if c.Engine.MinPollIntervalSeconds <= 0 {
		c.Engine.MinPollIntervalSeconds = 5
	}
	if c.Engine.PollIntervalSeconds < c.Engine.MinPollIntervalSeconds {
		c.Engine.PollIntervalSeconds = c.Engine.MinPollIntervalSeconds
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, once, status)", c.Mode))
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Site.BaseURL == "" && c.Mode != "status" {
		errs = append(errs, "site.base_url is required")
	} else if c.Site.BaseURL != "" && !strings.HasPrefix(c.Site.BaseURL, "http://") && !strings.HasPrefix(c.Site.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("site.base_url %q must start with http:// or https://", c.Site.BaseURL))
	}
	if c.Site.RequestsPerSecond < 0 {
		errs = append(errs, "site.requests_per_second must be >= 0")
	}
	if c.Site.FetchTimeout.Duration <= 0 {
		errs = append(errs, "site.fetch_timeout must be positive")
	}
	if !strings.Contains(c.Site.DetailPathTemplate, "{id}") {
		errs = append(errs, "site.detail_path_template must contain {id}")
	}

	if c.Engine.Concurrency < 1 {
		errs = append(errs, "engine.concurrency must be >= 1")
	}
	if c.Engine.HighWaterMark < 0 {
		errs = append(errs, "engine.high_water_mark must be >= 0")
	}
	if c.Engine.InferClosedAfterMissing < 0 {
		errs = append(errs, "engine.infer_closed_after_missing must be >= 0")
	}

	if !validBackends[c.Ledger.Backend] {
		errs = append(errs, fmt.Sprintf("unknown ledger.backend %q (valid: file, sqlite, postgres, redis, memory)", c.Ledger.Backend))
	}
	switch c.Ledger.Backend {
	case "file", "sqlite":
		if c.Ledger.Path == "" {
			errs = append(errs, fmt.Sprintf("ledger.path is required for the %s backend", c.Ledger.Backend))
		}
	case "postgres":
		if !c.Postgres.Enabled() {
			errs = append(errs, "ledger.backend postgres requires postgres.dsn or postgres.host")
		}
	case "redis":
		if !c.Redis.Enabled() {
			errs = append(errs, "ledger.backend redis requires redis.addr")
		}
	}
	if c.Ledger.RestoreBackup && !c.S3.Enabled {
		errs = append(errs, "ledger.restore_backup requires s3.enabled")
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3.bucket is required when s3 is enabled")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, "kafka.topic is required when kafka.brokers is set")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, "server.rate_limit_per_minute must be >= 0")
	}

	for _, e := range c.Notify.Events {
		if !validEvents[e] {
			errs = append(errs, fmt.Sprintf("unknown notify event %q", e))
		}
	}
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" && !c.Notify.CommandsEnabled {
		errs = append(errs, "notify.telegram_chat_id is required when the command bot is disabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
