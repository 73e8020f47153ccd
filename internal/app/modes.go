package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketwatch/internal/notify"
	"github.com/alanyoungcy/marketwatch/internal/pipeline"
	"github.com/alanyoungcy/marketwatch/internal/server"
	"github.com/alanyoungcy/marketwatch/internal/server/handler"
	"github.com/alanyoungcy/marketwatch/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

// WatchMode runs the tick scheduler, the scheduled backup, the HTTP API with
// its websocket hub and the Telegram command bot until ctx is cancelled.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering watch mode",
		slog.Duration("poll_interval", a.cfg.Engine.PollInterval()),
	)

	g, ctx := errgroup.WithContext(ctx)

	orch := pipeline.NewOrchestrator(deps.Scheduler, deps.Backup, a.cfg.S3.BackupCron, a.logger)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	if deps.Bot != nil {
		g.Go(func() error {
			err := deps.Bot.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("command bot: %w", err)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

// OnceMode runs a single tick and returns. A persistence failure is fatal.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	rep, err := deps.Engine.Tick(ctx)
	if err != nil {
		return fmt.Errorf("app: tick: %w", err)
	}
	a.logger.InfoContext(ctx, "single tick complete",
		slog.Duration("duration", rep.Duration),
		slog.Int("watched", rep.Watched),
		slog.Int("announced", rep.Announced()),
		slog.Bool("seeded", rep.Seeded),
	)
	if deps.Backup != nil {
		if err := deps.Backup.Run(ctx); err != nil {
			a.logger.WarnContext(ctx, "backup after tick failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// StatusMode prints the ledger summary as JSON.
func (a *App) StatusMode(ctx context.Context, deps *Dependencies) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(deps.Control.Summary()); err != nil {
		return fmt.Errorf("app: write status: %w", err)
	}
	return nil
}

// startHTTPServer adds the HTTP server, the websocket hub and the shutdown
// watcher to g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	h := server.Handlers{
		Health:  handler.NewHealthHandler(deps.Engine),
		Control: handler.NewControlHandler(deps.Control, a.logger),
		Markets: handler.NewMarketHandler(deps.Ledger),
		Metrics: deps.Metrics.Handler(),
	}

	if deps.SignalBus != nil {
		hub := ws.NewHub(deps.SignalBus, []string{notify.AnnouncementsChannel}, nil, a.logger)
		h.Hub = hub
		h.Announcements = handler.NewAnnouncementHandler(deps.SignalBus, notify.AnnouncementsChannel, a.logger)
		g.Go(func() error {
			err := hub.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ws hub: %w", err)
		})
	}

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, h, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
