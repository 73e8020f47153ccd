// Package ledger implements the market ledger: the durable id -> Record map
// plus the global seeded flag and the runtime destination override. The
// whole document lives in memory and is written wholesale through a
// domain.LedgerStore on every Persist.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// Ledger is safe for concurrent use. Get and All hand out deep copies, so
// callers read-modify-write through Upsert.
type Ledger struct {
	mu            sync.RWMutex
	store         domain.LedgerStore
	doc           domain.LedgerDocument
	defaultChatID string
	logger        *slog.Logger
	now           func() time.Time
}

// New creates an empty Ledger over store. defaultChatID is the notification
// destination used while no override is set. Call Reload to load persisted
// state.
func New(store domain.LedgerStore, defaultChatID string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:         store,
		doc:           domain.NewLedgerDocument(),
		defaultChatID: defaultChatID,
		logger:        logger.With(slog.String("component", "ledger")),
		now:           time.Now,
	}
}

// Backend returns the name of the underlying store.
func (l *Ledger) Backend() string {
	return l.store.Name()
}

// Reload replaces the in-memory document with the persisted one.
func (l *Ledger) Reload(ctx context.Context) error {
	doc, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("ledger: reload from %s: %w", l.store.Name(), err)
	}
	if doc.Markets == nil {
		doc.Markets = make(map[string]domain.Record)
	}

	l.mu.Lock()
	l.doc = doc
	l.mu.Unlock()

	l.logger.Info("ledger loaded",
		slog.String("backend", l.store.Name()),
		slog.Int("markets", len(doc.Markets)),
		slog.Bool("seeded", doc.Seeded),
	)
	return nil
}

// Restore replaces the in-memory document with doc, typically a backup, and
// persists it.
func (l *Ledger) Restore(ctx context.Context, doc domain.LedgerDocument) error {
	doc = doc.Clone()
	if doc.Markets == nil {
		doc.Markets = make(map[string]domain.Record)
	}
	l.mu.Lock()
	l.doc = doc
	l.mu.Unlock()
	return l.Persist(ctx)
}

// Persist writes the full document to the store.
func (l *Ledger) Persist(ctx context.Context) error {
	l.mu.Lock()
	l.doc.SavedAt = l.now().UTC()
	doc := l.doc.Clone()
	l.mu.Unlock()

	if err := l.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("ledger: persist to %s: %w", l.store.Name(), err)
	}
	return nil
}

// Get returns a copy of the record for id.
func (l *Ledger) Get(id string) (domain.Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.doc.Markets[id]
	if !ok {
		return domain.Record{}, false
	}
	return r.Clone(), true
}

// Upsert replaces the record for id.
func (l *Ledger) Upsert(id string, r domain.Record) {
	r.ID = id
	l.mu.Lock()
	l.doc.Markets[id] = r.Clone()
	l.mu.Unlock()
}

// Delete removes the record for id.
func (l *Ledger) Delete(id string) {
	l.mu.Lock()
	delete(l.doc.Markets, id)
	l.mu.Unlock()
}

// All returns copies of every record ordered by id.
func (l *Ledger) All() []domain.Record {
	l.mu.RLock()
	out := make([]domain.Record, 0, len(l.doc.Markets))
	for _, r := range l.doc.Markets {
		out = append(out, r.Clone())
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns every known market id, ordered.
func (l *Ledger) IDs() []string {
	l.mu.RLock()
	out := make([]string, 0, len(l.doc.Markets))
	for id := range l.doc.Markets {
		out = append(out, id)
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.doc.Markets)
}

// Seeded reports whether the cold-start seeding tick has completed.
func (l *Ledger) Seeded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.doc.Seeded
}

// SetSeeded sets the seeded flag. It is never cleared by the engine.
func (l *Ledger) SetSeeded(v bool) {
	l.mu.Lock()
	l.doc.Seeded = v
	l.mu.Unlock()
}

// TargetChatID returns the destination override, or the configured default.
func (l *Ledger) TargetChatID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.doc.TargetChatID != "" {
		return l.doc.TargetChatID
	}
	return l.defaultChatID
}

// SetTargetChatID overrides the notification destination. An empty id
// restores the configured default.
func (l *Ledger) SetTargetChatID(id string) {
	l.mu.Lock()
	l.doc.TargetChatID = id
	l.mu.Unlock()
}

// SavedAt returns the time of the last successful-or-attempted persist.
func (l *Ledger) SavedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.doc.SavedAt
}

// Document returns a deep copy of the whole ledger document.
func (l *Ledger) Document() domain.LedgerDocument {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.doc.Clone()
}

// Stats summarises the ledger for the control surface.
type Stats struct {
	Total             int       `json:"total"`
	Open              int       `json:"open"`
	Closed            int       `json:"closed"`
	Resolved          int       `json:"resolved"`
	Retired           int       `json:"retired"`
	AnnouncedOpen     int       `json:"announced_open"`
	AnnouncedClosed   int       `json:"announced_closed"`
	AnnouncedResolved int       `json:"announced_resolved"`
	Trending          int       `json:"trending"`
	Seeded            bool      `json:"seeded"`
	TargetChatID      string    `json:"target_chat_id"`
	Backend           string    `json:"backend"`
	SavedAt           time.Time `json:"saved_at"`
}

// Stats counts records by status and announcement flag.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{
		Total:        len(l.doc.Markets),
		Seeded:       l.doc.Seeded,
		TargetChatID: l.doc.TargetChatID,
		Backend:      l.store.Name(),
		SavedAt:      l.doc.SavedAt,
	}
	if s.TargetChatID == "" {
		s.TargetChatID = l.defaultChatID
	}
	for _, r := range l.doc.Markets {
		switch r.Status {
		case domain.StatusOpen:
			s.Open++
		case domain.StatusClosed:
			s.Closed++
		case domain.StatusResolved:
			s.Resolved++
		}
		if r.Retired {
			s.Retired++
		}
		if r.AnnouncedOpen {
			s.AnnouncedOpen++
		}
		if r.AnnouncedClosed {
			s.AnnouncedClosed++
		}
		if r.AnnouncedResolved {
			s.AnnouncedResolved++
		}
		if r.WasTrending {
			s.Trending++
		}
	}
	return s
}
