// Package engine reconciles scraped market lists and detail snapshots
// against the ledger once per tick and fires each lifecycle announcement
// (open, closed, resolved, trending entry) at most once per market.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/ledger"
	"github.com/alanyoungcy/marketwatch/internal/metrics"
	"github.com/alanyoungcy/marketwatch/internal/notify"
)

// TickLockKey is the distributed lock held for the duration of a tick when a
// LockManager is configured.
const TickLockKey = "marketwatch:tick"

// ListSource returns the active and trending list sections. Both may be
// empty on transient failure.
type ListSource interface {
	FetchLists(ctx context.Context) (domain.Lists, error)
}

// SnapshotSource returns a best-effort detail snapshot for a market URL. A
// nil snapshot or one without an id means extraction failed.
type SnapshotSource interface {
	FetchDetail(ctx context.Context, url string) (*domain.Snapshot, error)
}

// Notifier delivers one announcement message.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// Config tunes the engine.
type Config struct {
	BaseURL        string
	DetailTemplate string
	Concurrency    int
	FetchTimeout   time.Duration
	NotifyTimeout  time.Duration
	HighWaterMark  int
	// InferClosedAfterMissing enables disappearance-implies-closed after this
	// many consecutive ticks absent from both lists. 0 disables it.
	InferClosedAfterMissing int
	LockTTL                 time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 15 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Minute
	}
	return c
}

// Deps are the engine's collaborators. Archiver, Locks and Metrics are
// optional.
type Deps struct {
	Lists     ListSource
	Snapshots SnapshotSource
	Ledger    *ledger.Ledger
	Notifier  Notifier
	Archiver  domain.Archiver
	Locks     domain.LockManager
	Metrics   *metrics.Metrics
}

// TickReport summarises one tick.
type TickReport struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Active       int           `json:"active"`
	Trending     int           `json:"trending"`
	ListError    string        `json:"list_error,omitempty"`
	Watched      int           `json:"watched"`
	Fetched      int           `json:"fetched"`
	Skipped      int           `json:"skipped"`
	Inferred     int           `json:"inferred_closed"`
	Seeded       bool          `json:"seeded"`
	Opened       int           `json:"opened"`
	Closed       int           `json:"closed"`
	Resolved     int           `json:"resolved"`
	Trended      int           `json:"trended"`
	NotifyErrors int           `json:"notify_errors"`
	Compacted    int           `json:"compacted"`
}

// Announced returns the total number of announcements fired.
func (r TickReport) Announced() int {
	return r.Opened + r.Closed + r.Resolved + r.Trended
}

// Engine runs ticks. Tick is safe to call from several goroutines; calls
// that overlap a running tick return domain.ErrTickInProgress.
type Engine struct {
	cfg    Config
	deps   Deps
	policy Policy
	logger *slog.Logger

	running atomic.Bool
	last    atomic.Pointer[TickReport]

	now   func() time.Time
	newID func() string
}

// New creates an Engine.
func New(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		policy: DisappearancePolicy(cfg.InferClosedAfterMissing),
		logger: logger.With(slog.String("component", "engine")),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Running reports whether a tick is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// LastReport returns the report of the last completed tick.
func (e *Engine) LastReport() (TickReport, bool) {
	r := e.last.Load()
	if r == nil {
		return TickReport{}, false
	}
	return *r, true
}

// LastTickAt returns when the last completed tick started.
func (e *Engine) LastTickAt() (time.Time, bool) {
	r := e.last.Load()
	if r == nil {
		return time.Time{}, false
	}
	return r.StartedAt, true
}

// Tick runs one reconciliation pass. Persistence failures are returned;
// every per-market failure is logged and skipped.
func (e *Engine) Tick(ctx context.Context) (TickReport, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.deps.Metrics.TickSkipped()
		return TickReport{}, domain.ErrTickInProgress
	}
	defer e.running.Store(false)

	if e.deps.Locks != nil {
		unlock, err := e.deps.Locks.Acquire(ctx, TickLockKey, e.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			e.deps.Metrics.TickSkipped()
			e.logger.InfoContext(ctx, "tick lock held elsewhere, skipping")
			return TickReport{}, domain.ErrTickInProgress
		case err != nil:
			e.logger.WarnContext(ctx, "tick lock unavailable, running unguarded",
				slog.String("error", err.Error()),
			)
		default:
			defer unlock()
		}
	}

	start := e.now()
	rep, err := e.tick(ctx)
	rep.StartedAt = start
	rep.Duration = e.now().Sub(start)

	if err != nil {
		e.deps.Metrics.TickFailed()
		return rep, err
	}
	e.deps.Metrics.TickDone(rep.Duration, rep.Watched)
	e.deps.Metrics.LedgerSize(e.statusCounts())
	e.last.Store(&rep)
	return rep, nil
}

func (e *Engine) tick(ctx context.Context) (TickReport, error) {
	var rep TickReport
	led := e.deps.Ledger

	lists, err := e.deps.Lists.FetchLists(ctx)
	if err != nil {
		rep.ListError = err.Error()
		e.logger.WarnContext(ctx, "list fetch failed, continuing from ledger",
			slog.String("error", err.Error()),
		)
		lists = domain.Lists{}
	}
	idx := newListIndex(lists)
	rep.Active = len(idx.active)
	rep.Trending = len(idx.trending)

	targets := e.watchSet(idx)
	rep.Watched = len(targets)

	snaps := e.fetchAll(ctx, targets, idx, &rep)

	for id, s := range snaps {
		rec, _ := led.Get(id)
		in := PolicyInput{
			Observed:     s.Status,
			Listed:       idx.listed(id),
			ListsEmpty:   idx.empty(),
			MissingCount: rec.MissingCount,
		}
		if st := e.policy(in); st != s.Status {
			e.logger.InfoContext(ctx, "status inferred from list absence",
				slog.String("market_id", id),
				slog.String("observed", string(s.Status)),
				slog.String("inferred", string(st)),
				slog.Int("missing_count", rec.MissingCount+1),
			)
			s.Status = st
			rep.Inferred++
		}
	}

	if !led.Seeded() {
		if len(snaps) == 0 {
			e.logger.InfoContext(ctx, "waiting for first snapshots before seeding")
			return rep, nil
		}
		e.seed(targets, snaps, idx)
		e.updateMissing(idx)
		rep.Seeded = true
		if err := led.Persist(ctx); err != nil {
			return rep, fmt.Errorf("engine: persist after seeding: %w", err)
		}
		e.logger.InfoContext(ctx, "ledger seeded silently",
			slog.Int("markets", len(snaps)),
		)
		return rep, nil
	}

	for _, t := range targets {
		s, ok := snaps[t.id]
		if !ok {
			continue
		}
		e.reconcile(ctx, t, s, idx, &rep)
	}

	e.updateMissing(idx)

	n, err := e.compact(ctx, idx)
	if err != nil {
		e.logger.WarnContext(ctx, "compaction skipped",
			slog.String("error", err.Error()),
		)
	}
	rep.Compacted = n

	if err := led.Persist(ctx); err != nil {
		return rep, fmt.Errorf("engine: persist: %w", err)
	}
	return rep, nil
}

// updateMissing maintains the consecutive-absence counter of every record.
// An all-empty list result is treated as a failed read and changes nothing.
func (e *Engine) updateMissing(idx listIndex) {
	if idx.empty() {
		return
	}
	led := e.deps.Ledger
	for _, rec := range led.All() {
		next := rec.MissingCount + 1
		if idx.listed(rec.ID) {
			next = 0
		}
		if next != rec.MissingCount {
			rec.MissingCount = next
			led.Upsert(rec.ID, rec)
		}
	}
}

func (e *Engine) statusCounts() map[string]int {
	s := e.deps.Ledger.Stats()
	return map[string]int{
		string(domain.StatusOpen):     s.Open,
		string(domain.StatusClosed):   s.Closed,
		string(domain.StatusResolved): s.Resolved,
		"retired":                     s.Retired,
	}
}
