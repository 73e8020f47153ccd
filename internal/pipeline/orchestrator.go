// Package pipeline runs the long-lived background loops: the tick scheduler
// and the scheduled ledger backup.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Orchestrator manages the pipeline goroutines.
type Orchestrator struct {
	scheduler  *Scheduler
	backup     *Backup
	backupCron string
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator. backup may be nil, in which case
// no backup loop runs.
func NewOrchestrator(scheduler *Scheduler, backup *Backup, backupCron string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		scheduler:  scheduler,
		backup:     backup,
		backupCron: backupCron,
		logger:     logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts every loop and blocks until ctx is cancelled or one of them
// fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Bool("backup", o.backup != nil),
		slog.String("backup_cron", o.backupCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.scheduler.RunLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("scheduler: %w", err)
	})

	if o.backup != nil && o.backupCron != "" {
		g.Go(func() error {
			err := o.backup.RunCron(ctx, o.backupCron)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("backup: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
