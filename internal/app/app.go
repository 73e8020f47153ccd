// Package app wires marketwatch's dependencies (ledger backend, caches,
// blob storage, notifiers, engine, pipelines and control surfaces) and runs
// the configured operating mode.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alanyoungcy/marketwatch/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		out:    os.Stdout,
	}
}

// Run wires all dependencies, runs the configured mode and blocks until it
// finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
		slog.String("ledger_backend", a.cfg.Ledger.Backend),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	a.logger.InfoContext(ctx, "dependencies wired",
		slog.Any("senders", deps.Notifier.Senders()),
		slog.Int("markets", deps.Ledger.Len()),
		slog.Bool("seeded", deps.Ledger.Seeded()),
		slog.Bool("redis", deps.SignalBus != nil),
		slog.Bool("backup", deps.Backup != nil),
		slog.Bool("commands", deps.Bot != nil),
	)

	switch a.cfg.Mode {
	case "watch":
		return a.WatchMode(ctx, deps)
	case "once":
		return a.OnceMode(ctx, deps)
	case "status":
		return a.StatusMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
