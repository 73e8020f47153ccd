package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/market"
)

// listIndex is one tick's list result keyed by market id.
type listIndex struct {
	active   map[string]domain.Summary
	trending map[string]domain.Summary
}

func newListIndex(l domain.Lists) listIndex {
	return listIndex{
		active:   indexSummaries(l.Active),
		trending: indexSummaries(l.Trending),
	}
}

// indexSummaries keys summaries by id, deriving it from the URL when the
// list scrape left it blank. The first entry for an id wins.
func indexSummaries(in []domain.Summary) map[string]domain.Summary {
	out := make(map[string]domain.Summary, len(in))
	for _, s := range in {
		if s.ID == "" {
			s.ID = market.ExtractID(s.URL)
		}
		if s.ID == "" {
			continue
		}
		if _, dup := out[s.ID]; !dup {
			out[s.ID] = s
		}
	}
	return out
}

func (i listIndex) inActive(id string) bool {
	_, ok := i.active[id]
	return ok
}

func (i listIndex) inTrending(id string) bool {
	_, ok := i.trending[id]
	return ok
}

func (i listIndex) listed(id string) bool {
	return i.inActive(id) || i.inTrending(id)
}

func (i listIndex) empty() bool {
	return len(i.active) == 0 && len(i.trending) == 0
}

// cards returns the list entries for id, active first.
func (i listIndex) cards(id string) []domain.Summary {
	var out []domain.Summary
	if s, ok := i.active[id]; ok {
		out = append(out, s)
	}
	if s, ok := i.trending[id]; ok {
		out = append(out, s)
	}
	return out
}

// target is one watched market and the URL its snapshot is fetched from.
type target struct {
	id  string
	url string
}

// watchSet is every listed or known market minus retired ones, ordered by
// id.
func (e *Engine) watchSet(idx listIndex) []target {
	led := e.deps.Ledger

	ids := make(map[string]struct{}, len(idx.active)+len(idx.trending)+led.Len())
	for id := range idx.active {
		ids[id] = struct{}{}
	}
	for id := range idx.trending {
		ids[id] = struct{}{}
	}
	for _, id := range led.IDs() {
		ids[id] = struct{}{}
	}

	out := make([]target, 0, len(ids))
	for id := range ids {
		rec, known := led.Get(id)
		if known && rec.Retired {
			continue
		}
		out = append(out, target{id: id, url: e.detailURL(id, rec, idx)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// detailURL prefers the remembered URL, then the active card, then the
// trending card, then a URL built from the id.
func (e *Engine) detailURL(id string, rec domain.Record, idx listIndex) string {
	if rec.URL != "" {
		return rec.URL
	}
	for _, c := range idx.cards(id) {
		if c.URL != "" {
			return market.ResolveURL(e.cfg.BaseURL, c.URL)
		}
	}
	return market.DetailURL(e.cfg.BaseURL, e.cfg.DetailTemplate, id)
}

// fetchAll fetches every target with bounded concurrency. Results are
// collected first and merged afterwards; no ledger record is touched here.
func (e *Engine) fetchAll(ctx context.Context, targets []target, idx listIndex, rep *TickReport) map[string]*domain.Snapshot {
	var (
		mu  sync.Mutex
		raw = make(map[string]*domain.Snapshot, len(targets))
		g   errgroup.Group
	)
	g.SetLimit(e.cfg.Concurrency)

	for _, t := range targets {
		g.Go(func() error {
			snap, err := e.fetchOne(ctx, t)
			if err != nil {
				e.deps.Metrics.Fetch("error")
				e.logger.WarnContext(ctx, "snapshot fetch failed",
					slog.String("market_id", t.id),
					slog.String("url", t.url),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if snap == nil || snap.ID == "" || !snap.Status.Valid() {
				e.deps.Metrics.Fetch("empty")
				e.logger.DebugContext(ctx, "snapshot extraction failed",
					slog.String("market_id", t.id),
				)
				return nil
			}
			e.deps.Metrics.Fetch("ok")
			mu.Lock()
			raw[t.id] = snap
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]*domain.Snapshot, len(raw))
	for _, t := range targets {
		s, ok := raw[t.id]
		if !ok {
			rep.Skipped++
			continue
		}
		if s.ID != t.id {
			e.logger.DebugContext(ctx, "snapshot id differs from watched id",
				slog.String("market_id", t.id),
				slog.String("snapshot_id", s.ID),
			)
		}
		rec, _ := e.deps.Ledger.Get(t.id)
		out[t.id] = mergeSnapshot(*s, t, idx, rec)
		rep.Fetched++
	}
	return out
}

func (e *Engine) fetchOne(ctx context.Context, t target) (snap *domain.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: snapshot source panic: %v", r)
		}
	}()
	fctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	return e.deps.Snapshots.FetchDetail(fctx, t.url)
}

// mergeSnapshot normalizes s and fills its gaps. For open markets the list
// cards are preferred for options, category and ends-in.
func mergeSnapshot(s domain.Snapshot, t target, idx listIndex, rec domain.Record) *domain.Snapshot {
	s.ID = t.id
	if s.URL == "" {
		s.URL = t.url
	}
	s.Options = market.NormalizeOptions(s.Options)

	cards := idx.cards(t.id)
	if s.Status == domain.StatusOpen {
		if opts := cardOptions(cards); len(opts) > 0 {
			s.Options = opts
		}
		if v := firstCard(cards, func(c domain.Summary) string { return c.Category }); v != "" {
			s.Category = v
		}
		if v := firstCard(cards, func(c domain.Summary) string { return c.EndsIn }); v != "" {
			s.EndsIn = v
		}
	}

	if s.Title == "" {
		s.Title = firstCard(cards, func(c domain.Summary) string { return c.Title })
	}
	if s.Title == "" && rec.LastSeen != nil {
		s.Title = rec.LastSeen.Title
	}
	if s.Title == "" {
		s.Title = rec.Title
	}
	return &s
}

func cardOptions(cards []domain.Summary) []domain.Option {
	for _, c := range cards {
		if opts := market.NormalizeOptions(c.Options); len(opts) > 0 {
			return opts
		}
	}
	return nil
}

func firstCard(cards []domain.Summary, field func(domain.Summary) string) string {
	for _, c := range cards {
		if v := field(c); v != "" {
			return v
		}
	}
	return ""
}
