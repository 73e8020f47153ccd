package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mymmrac/telego"

	s3blob "github.com/alanyoungcy/marketwatch/internal/blob/s3"
	"github.com/alanyoungcy/marketwatch/internal/cache/redis"
	"github.com/alanyoungcy/marketwatch/internal/config"
	"github.com/alanyoungcy/marketwatch/internal/control"
	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/engine"
	"github.com/alanyoungcy/marketwatch/internal/ledger"
	"github.com/alanyoungcy/marketwatch/internal/metrics"
	"github.com/alanyoungcy/marketwatch/internal/notify"
	"github.com/alanyoungcy/marketwatch/internal/pipeline"
	"github.com/alanyoungcy/marketwatch/internal/scrape"
	"github.com/alanyoungcy/marketwatch/internal/store/postgres"
	"github.com/alanyoungcy/marketwatch/internal/store/sqlite"
)

// Dependencies bundles everything the modes need. Optional parts are nil
// when their backing service is not configured.
type Dependencies struct {
	Ledger   *ledger.Ledger
	Engine   *engine.Engine
	Notifier *notify.Notifier
	Metrics  *metrics.Metrics
	Control  *control.Service

	Scheduler *pipeline.Scheduler
	Backup    *pipeline.Backup

	// Redis
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Telegram
	Bot *control.Bot
}

// infra holds the raw clients so the ledger backend and the optional
// features can share one connection each.
type infra struct {
	redis    *redis.Client
	postgres *postgres.Client
	archiver *s3blob.Archiver
	telegram *telego.Bot
}

// Wire constructs all dependencies from cfg and returns them together with
// a cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	var in infra

	// --- Redis ---
	if cfg.Redis.Enabled() {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		in.redis = rc
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled() {
		pc, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pc.Close)
		if cfg.Postgres.RunMigrations {
			if err := pc.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		in.postgres = pc
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		in.archiver = s3blob.NewArchiver(s3blob.NewWriter(sc), s3blob.NewReader(sc))
	}

	// --- Ledger ---
	store, closeStore, err := openLedgerStore(ctx, cfg, in)
	if err != nil {
		return fail(err)
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}
	led := ledger.New(store, cfg.Notify.TelegramChatID, logger)
	if err := led.Reload(ctx); err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	if cfg.Ledger.RestoreBackup && led.Len() == 0 && in.archiver != nil {
		if err := restoreLedger(ctx, led, in.archiver, logger); err != nil {
			return fail(err)
		}
	}

	deps := &Dependencies{
		Ledger:  led,
		Metrics: metrics.New(),
	}

	// --- Telegram ---
	if cfg.Notify.TelegramToken != "" {
		bot, err := telego.NewBot(cfg.Notify.TelegramToken)
		if err != nil {
			return fail(fmt.Errorf("wire: telegram: %w", err))
		}
		in.telegram = bot
	}

	// --- Notifications ---
	senders, closeSenders := buildSenders(cfg, in)
	closers = append(closers, closeSenders...)
	if in.redis != nil {
		bus := redis.NewSignalBus(in.redis)
		deps.SignalBus = bus
		deps.RateLimiter = redis.NewRateLimiter(in.redis)
		senders = append(senders, notify.NewBusSender(bus))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Scraping ---
	client := scrape.NewClient(scrape.Config{
		BaseURL:           cfg.Site.BaseURL,
		ListPath:          cfg.Site.ListPath,
		UserAgent:         cfg.Site.UserAgent,
		RequestsPerSecond: cfg.Site.RequestsPerSecond,
		Timeout:           cfg.Site.FetchTimeout.Duration,
		MarketPathHint:    cfg.Site.MarketPathHint,
	}, logger)

	// --- Engine ---
	engDeps := engine.Deps{
		Lists:     scrape.NewListSource(client),
		Snapshots: scrape.NewSnapshotSource(client),
		Ledger:    led,
		Notifier:  deps.Notifier,
		Metrics:   deps.Metrics,
	}
	if in.archiver != nil && cfg.Engine.ArchiveOnCompact {
		engDeps.Archiver = in.archiver
	}
	if in.redis != nil && cfg.Engine.DistributedLock {
		engDeps.Locks = redis.NewLockManager(in.redis)
	}
	deps.Engine = engine.New(engine.Config{
		BaseURL:                 cfg.Site.BaseURL,
		DetailTemplate:          cfg.Site.DetailPathTemplate,
		Concurrency:             cfg.Engine.Concurrency,
		FetchTimeout:            cfg.Site.FetchTimeout.Duration,
		NotifyTimeout:           cfg.Engine.NotifyTimeout.Duration,
		HighWaterMark:           cfg.Engine.HighWaterMark,
		InferClosedAfterMissing: cfg.Engine.InferClosedAfterMissing,
		LockTTL:                 lockTTL(cfg.Engine.PollInterval()),
	}, engDeps, logger)

	// --- Pipeline ---
	deps.Scheduler = pipeline.NewScheduler(deps.Engine, cfg.Engine.PollInterval(), logger)
	if in.archiver != nil {
		deps.Backup = pipeline.NewBackup(led, in.archiver, logger)
	}

	// --- Control ---
	deps.Control = control.NewService(deps.Engine, led, logger)
	if in.telegram != nil && cfg.Notify.CommandsEnabled {
		deps.Bot = control.NewBot(in.telegram, deps.Control, cfg.Notify.CommandChats, logger)
	}

	return deps, cleanup, nil
}

// openLedgerStore returns the configured ledger backend and, for backends
// that own a connection, a closer.
func openLedgerStore(ctx context.Context, cfg *config.Config, in infra) (domain.LedgerStore, func(), error) {
	switch cfg.Ledger.Backend {
	case "memory":
		return ledger.NewMemoryStore(), nil, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.Ledger.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: sqlite ledger: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		if in.postgres == nil {
			return nil, nil, errors.New("wire: postgres ledger: postgres is not configured")
		}
		name := cfg.Ledger.Key
		if name == "" {
			name = postgres.DefaultLedgerName
		}
		return postgres.NewLedgerStore(in.postgres.Pool(), name), nil, nil
	case "redis":
		if in.redis == nil {
			return nil, nil, errors.New("wire: redis ledger: redis is not configured")
		}
		key := cfg.Ledger.Key
		if key == "" {
			key = redis.DefaultLedgerKey
		}
		return redis.NewLedgerStore(in.redis, key), nil, nil
	default:
		return ledger.NewFileStore(cfg.Ledger.Path), nil, nil
	}
}

// restoreLedger seeds an empty ledger from the newest S3 backup. A bucket
// without backups is not an error.
func restoreLedger(ctx context.Context, led *ledger.Ledger, archiver *s3blob.Archiver, logger *slog.Logger) error {
	doc, path, err := archiver.LatestBackup(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("no ledger backup to restore")
		return nil
	}
	if err != nil {
		return fmt.Errorf("wire: restore ledger: %w", err)
	}
	if err := led.Restore(ctx, doc); err != nil {
		return fmt.Errorf("wire: restore ledger: %w", err)
	}
	logger.Info("ledger restored from backup",
		slog.String("path", path),
		slog.Int("markets", len(doc.Markets)),
	)
	return nil
}

// buildSenders creates one sender per configured channel, plus closers for
// the ones that hold connections.
func buildSenders(cfg *config.Config, in infra) ([]notify.Sender, []func()) {
	var (
		senders []notify.Sender
		closers []func()
	)
	if in.telegram != nil {
		senders = append(senders, notify.NewTelegramSender(in.telegram, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if cfg.Notify.SlackWebhookURL != "" {
		senders = append(senders, notify.NewSlackSender(cfg.Notify.SlackWebhookURL))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		ks := notify.NewKafkaSender(notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), cfg.Kafka.Topic)
		senders = append(senders, ks)
		closers = append(closers, func() { _ = ks.Close() })
	}
	if in.postgres != nil && cfg.Postgres.Audit {
		senders = append(senders, notify.NewAuditSender(postgres.NewAuditStore(in.postgres.Pool())))
	}
	return senders, closers
}

// lockTTL bounds the tick lock so a crashed holder frees it within a few
// intervals.
func lockTTL(interval time.Duration) time.Duration {
	return max(5*time.Minute, 3*interval)
}
