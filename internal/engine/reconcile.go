package engine

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/market"
	"github.com/alanyoungcy/marketwatch/internal/notify"
)

// loadRecord returns the ledger record for t, or a fresh one.
func (e *Engine) loadRecord(t target) domain.Record {
	rec, ok := e.deps.Ledger.Get(t.id)
	if !ok {
		now := e.now().UTC()
		rec = domain.Record{ID: t.id, FirstSeenAt: now}
	}
	if rec.URL == "" {
		rec.URL = t.url
	}
	return rec
}

// observe applies the parts of a snapshot that never announce anything:
// title, the rolling open-state view and the one-time closed snapshot.
func (e *Engine) observe(rec *domain.Record, s *domain.Snapshot, status domain.MarketStatus) {
	if s.Title != "" {
		rec.Title = s.Title
	}

	if status == domain.StatusOpen {
		seen := domain.SeenState{}
		if rec.LastSeen != nil {
			seen = *rec.LastSeen
		}
		if s.Title != "" {
			seen.Title = s.Title
		}
		if s.Category != "" {
			seen.Category = s.Category
		}
		if s.EndsIn != "" {
			seen.EndsIn = s.EndsIn
		}
		if len(s.Options) > 0 {
			seen.Options = domain.CloneOptions(s.Options)
		}
		rec.LastSeen = &seen
	}

	if status == domain.StatusClosed && rec.ClosedSnapshot == nil {
		opts := s.Options
		if rec.LastSeen != nil && len(rec.LastSeen.Options) > 0 {
			opts = rec.LastSeen.Options
		}
		rec.ClosedSnapshot = &domain.ClosedSnapshot{
			Options:    domain.CloneOptions(opts),
			CapturedAt: e.now().UTC(),
		}
	}
}

// seed records every snapshot with the announcement flags of its current
// status already set, so nothing in flight at first start is announced.
func (e *Engine) seed(targets []target, snaps map[string]*domain.Snapshot, idx listIndex) {
	led := e.deps.Ledger
	for _, t := range targets {
		s, ok := snaps[t.id]
		if !ok {
			continue
		}
		id := t.id
		rec := e.loadRecord(t)
		status := rec.Status.Advance(s.Status)

		e.observe(&rec, s, status)

		rank := status.Rank()
		rec.AnnouncedOpen = rec.AnnouncedOpen || rank >= domain.StatusOpen.Rank()
		rec.AnnouncedClosed = rec.AnnouncedClosed || rank >= domain.StatusClosed.Rank()
		if status == domain.StatusResolved {
			rec.AnnouncedResolved = true
			rec.Retired = true
			rec.Winner = market.ResolveWinner(s.Winner, rec.FinalOptions(s.Options))
		}
		rec.WasTrending = idx.inTrending(id)
		rec.Status = status
		rec.LastObserved = s.Status
		rec.UpdatedAt = e.now().UTC()
		led.Upsert(id, rec)
	}
	led.SetSeeded(true)
}

// reconcile runs the per-market transition steps in their fixed order and
// writes the record back. Each announcement guard is independent, so a
// market that jumps from open to resolved between ticks fires each event
// at most once.
func (e *Engine) reconcile(ctx context.Context, t target, s *domain.Snapshot, idx listIndex, rep *TickReport) {
	rec := e.loadRecord(t)
	prev := rec.Status
	status := prev.Advance(s.Status)
	if status != s.Status {
		e.logger.DebugContext(ctx, "ignoring status regression",
			slog.String("market_id", t.id),
			slog.String("recorded", string(prev)),
			slog.String("observed", string(s.Status)),
		)
	}

	e.observe(&rec, s, status)

	if status == domain.StatusOpen && idx.inActive(t.id) && !rec.AnnouncedOpen {
		e.announce(ctx, domain.KindOpen, rec, openOptions(idx, rec, s), "", s, rep)
		rec.AnnouncedOpen = true
	}

	if status == domain.StatusClosed && !rec.AnnouncedClosed && prev != domain.StatusClosed {
		e.announce(ctx, domain.KindClosed, rec, rec.FinalOptions(s.Options), "", s, rep)
		rec.AnnouncedClosed = true
	}

	if status == domain.StatusResolved && !rec.AnnouncedResolved {
		opts := rec.FinalOptions(s.Options)
		rec.Winner = market.ResolveWinner(s.Winner, opts)
		e.announce(ctx, domain.KindResolved, rec, opts, rec.Winner, s, rep)
		rec.AnnouncedResolved = true
		rec.Retired = true
	}

	trending := idx.inTrending(t.id)
	if trending && !rec.WasTrending {
		e.announce(ctx, domain.KindTrending, rec, openOptions(idx, rec, s), "", s, rep)
	}
	if !idx.empty() {
		rec.WasTrending = trending
	}

	rec.Status = status
	rec.LastObserved = s.Status
	rec.UpdatedAt = e.now().UTC()
	e.deps.Ledger.Upsert(t.id, rec)
}

// openOptions is the option list for open and trending announcements: the
// list card, then the last open observation, then the raw snapshot.
func openOptions(idx listIndex, rec domain.Record, s *domain.Snapshot) []domain.Option {
	if opts := cardOptions(idx.cards(rec.ID)); len(opts) > 0 {
		return opts
	}
	if rec.LastSeen != nil && len(rec.LastSeen.Options) > 0 {
		return rec.LastSeen.Options
	}
	return s.Options
}

// announce formats and delivers one announcement. Delivery failures are
// logged; the caller sets the announced flag regardless.
func (e *Engine) announce(ctx context.Context, kind domain.AnnouncementKind, rec domain.Record, opts []domain.Option, winner string, s *domain.Snapshot, rep *TickReport) {
	a := domain.Announcement{
		ID:       e.newID(),
		Kind:     kind,
		MarketID: rec.ID,
		Title:    rec.Title,
		URL:      rec.URL,
		Options:  domain.CloneOptions(opts),
		Winner:   winner,
		At:       e.now().UTC(),
	}
	if rec.LastSeen != nil {
		a.Category = rec.LastSeen.Category
		a.EndsIn = rec.LastSeen.EndsIn
	}
	if s.Category != "" {
		a.Category = s.Category
	}
	if s.EndsIn != "" && kind != domain.KindClosed && kind != domain.KindResolved {
		a.EndsIn = s.EndsIn
	}

	switch kind {
	case domain.KindOpen:
		rep.Opened++
	case domain.KindClosed:
		rep.Closed++
	case domain.KindResolved:
		rep.Resolved++
	case domain.KindTrending:
		rep.Trended++
	}
	e.deps.Metrics.Announced(string(kind))

	title, body := Format(a)
	msg := notify.Message{
		Destination:  e.deps.Ledger.TargetChatID(),
		Event:        string(kind),
		Title:        title,
		Body:         body,
		Announcement: &a,
	}

	nctx, cancel := context.WithTimeout(ctx, e.cfg.NotifyTimeout)
	defer cancel()
	if err := e.deps.Notifier.Notify(nctx, msg); err != nil {
		rep.NotifyErrors++
		e.deps.Metrics.NotifyFailed()
		e.logger.ErrorContext(ctx, "announcement delivery failed",
			slog.String("market_id", rec.ID),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return
	}
	e.logger.InfoContext(ctx, "announced",
		slog.String("market_id", rec.ID),
		slog.String("kind", string(kind)),
		slog.String("title", rec.Title),
	)
}
