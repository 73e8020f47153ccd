package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/engine"
)

// Ticker runs one reconciliation pass.
type Ticker interface {
	Tick(ctx context.Context) (engine.TickReport, error)
}

// Scheduler drives a Ticker on a fixed interval plus on-demand triggers.
// A tick that errors or panics is logged and the loop keeps going.
type Scheduler struct {
	ticker   Ticker
	interval time.Duration
	trigger  chan struct{}
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(ticker Ticker, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		ticker:   ticker,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// Trigger requests a tick as soon as the loop is free. Requests made while
// one is already pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RunLoop ticks immediately, then on every interval and trigger, until ctx
// is cancelled.
func (s *Scheduler) RunLoop(ctx context.Context) error {
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))

	// Run immediately on start.
	s.runOnce(ctx, "start")

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.runOnce(ctx, "timer")
			timer.Reset(s.interval)
		case <-s.trigger:
			s.runOnce(ctx, "manual")
		}
	}
}

// runOnce runs one tick and never lets a failure escape the loop.
func (s *Scheduler) runOnce(ctx context.Context, cause string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked",
				slog.String("cause", cause),
				slog.String("error", fmt.Sprint(r)),
			)
		}
	}()

	rep, err := s.ticker.Tick(ctx)
	switch {
	case errors.Is(err, domain.ErrTickInProgress):
		s.logger.Debug("tick skipped, another is running", slog.String("cause", cause))
	case err != nil:
		s.logger.Error("tick failed",
			slog.String("cause", cause),
			slog.String("error", err.Error()),
		)
	default:
		s.logger.Info("tick complete",
			slog.String("cause", cause),
			slog.Duration("duration", rep.Duration),
			slog.Int("watched", rep.Watched),
			slog.Int("fetched", rep.Fetched),
			slog.Int("skipped", rep.Skipped),
			slog.Int("announced", rep.Announced()),
			slog.Bool("seeded", rep.Seeded),
			slog.Int("compacted", rep.Compacted),
		)
	}
}
