// Package control implements the operator surface: manual ticks, ledger
// summaries, destination overrides and the seeding escape hatch. The HTTP
// API and the Telegram command bot both call into Service.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/engine"
	"github.com/alanyoungcy/marketwatch/internal/ledger"
	"github.com/alanyoungcy/marketwatch/internal/notify"
)

// Engine is the slice of *engine.Engine the control surface drives.
type Engine interface {
	Tick(ctx context.Context) (engine.TickReport, error)
	Running() bool
	LastReport() (engine.TickReport, bool)
}

// Summary is the ledger overview plus tick state.
type Summary struct {
	ledger.Stats
	TickRunning bool               `json:"tick_running"`
	LastTick    *engine.TickReport `json:"last_tick,omitempty"`
}

// Service executes control commands.
type Service struct {
	engine Engine
	ledger *ledger.Ledger
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(eng Engine, led *ledger.Ledger, logger *slog.Logger) *Service {
	return &Service{
		engine: eng,
		ledger: led,
		logger: logger.With(slog.String("component", "control")),
	}
}

// TickNow runs one tick synchronously. An overlapping tick surfaces as
// domain.ErrTickInProgress.
func (s *Service) TickNow(ctx context.Context) (engine.TickReport, error) {
	s.logger.InfoContext(ctx, "manual tick requested")
	rep, err := s.engine.Tick(ctx)
	if err != nil {
		return rep, fmt.Errorf("control: tick: %w", err)
	}
	return rep, nil
}

// Summary returns the current ledger counts.
func (s *Service) Summary() Summary {
	sum := Summary{
		Stats:       s.ledger.Stats(),
		TickRunning: s.engine.Running(),
	}
	if rep, ok := s.engine.LastReport(); ok {
		sum.LastTick = &rep
	}
	return sum
}

// SetDestination overrides the notification destination and persists it.
// An empty id restores the configured default.
func (s *Service) SetDestination(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id != "" {
		if _, err := notify.ParseChatID(id); err != nil {
			return fmt.Errorf("control: set destination: %w", err)
		}
	}
	s.ledger.SetTargetChatID(id)
	if err := s.ledger.Persist(ctx); err != nil {
		return fmt.Errorf("control: set destination: %w", err)
	}
	s.logger.InfoContext(ctx, "destination updated",
		slog.String("destination", s.ledger.TargetChatID()),
	)
	return nil
}

// SkipSeed marks the ledger seeded without recording any markets, so the
// next tick announces everything it sees.
func (s *Service) SkipSeed(ctx context.Context) error {
	s.ledger.SetSeeded(true)
	if err := s.ledger.Persist(ctx); err != nil {
		return fmt.Errorf("control: skip seed: %w", err)
	}
	s.logger.InfoContext(ctx, "seeding skipped")
	return nil
}

// FormatSummary renders sum as plain text for chat replies.
func FormatSummary(sum Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "total: %d\n", sum.Total)
	fmt.Fprintf(&b, "open: %d  closed: %d  resolved: %d  retired: %d\n",
		sum.Open, sum.Closed, sum.Resolved, sum.Retired)
	fmt.Fprintf(&b, "announced open/closed/resolved: %d/%d/%d\n",
		sum.AnnouncedOpen, sum.AnnouncedClosed, sum.AnnouncedResolved)
	fmt.Fprintf(&b, "seeded: %t\n", sum.Seeded)
	fmt.Fprintf(&b, "destination: %s\n", orNone(sum.TargetChatID))
	fmt.Fprintf(&b, "backend: %s", sum.Backend)
	if sum.LastTick != nil {
		fmt.Fprintf(&b, "\nlast tick: %s ago, watched %d, announced %d",
			time.Since(sum.LastTick.StartedAt).Round(time.Second),
			sum.LastTick.Watched, sum.LastTick.Announced())
	}
	return b.String()
}

// FormatReport renders a tick report as one line.
func FormatReport(rep engine.TickReport) string {
	if rep.Seeded {
		return fmt.Sprintf("seeded ledger from %d snapshots", rep.Fetched)
	}
	return fmt.Sprintf("watched %d, fetched %d, skipped %d, announced %d (open %d, closed %d, resolved %d, trending %d)",
		rep.Watched, rep.Fetched, rep.Skipped, rep.Announced(),
		rep.Opened, rep.Closed, rep.Resolved, rep.Trended)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
