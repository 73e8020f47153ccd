package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// DocumentSource yields the ledger document to back up.
type DocumentSource interface {
	Document() domain.LedgerDocument
}

// Backup copies the ledger document to cold storage.
type Backup struct {
	source   DocumentSource
	archiver domain.Archiver
	logger   *slog.Logger
}

// NewBackup creates a Backup.
func NewBackup(source DocumentSource, archiver domain.Archiver, logger *slog.Logger) *Backup {
	return &Backup{
		source:   source,
		archiver: archiver,
		logger:   logger.With(slog.String("component", "backup")),
	}
}

// Run writes one backup.
func (b *Backup) Run(ctx context.Context) error {
	doc := b.source.Document()
	path, err := b.archiver.Backup(ctx, doc)
	if err != nil {
		return fmt.Errorf("backup: write ledger: %w", err)
	}
	b.logger.Info("ledger backed up",
		slog.String("path", path),
		slog.Int("markets", len(doc.Markets)),
	)
	return nil
}

// RunCron runs Run on a cron schedule until ctx is cancelled. Both standard
// 5-field expressions ("0 3 * * *") and descriptors ("@every 6h") are
// accepted; times are UTC.
func (b *Backup) RunCron(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		if err := b.Run(ctx); err != nil {
			b.logger.Error("backup run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("backup: parse schedule %q: %w", spec, err)
	}

	b.logger.Info("backup cron started", slog.String("cron", spec))
	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	b.logger.Info("backup cron stopped")
	return ctx.Err()
}
