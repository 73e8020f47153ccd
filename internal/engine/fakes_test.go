package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/ledger"
	"github.com/alanyoungcy/marketwatch/internal/market"
	"github.com/alanyoungcy/marketwatch/internal/notify"
)

const testBase = "https://markets.test"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func marketURL(id string) string {
	return testBase + "/market?id=" + id
}

// fakeLists returns whatever lists were set last.
type fakeLists struct {
	mu    sync.Mutex
	lists domain.Lists
	err   error
}

func (f *fakeLists) set(active, trending []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = domain.Lists{}
	for _, id := range active {
		f.lists.Active = append(f.lists.Active, domain.Summary{ID: id, URL: marketURL(id)})
	}
	for _, id := range trending {
		f.lists.Trending = append(f.lists.Trending, domain.Summary{ID: id, URL: marketURL(id)})
	}
	f.err = nil
}

func (f *fakeLists) setLists(l domain.Lists) {
	f.mu.Lock()
	f.lists = l
	f.err = nil
	f.mu.Unlock()
}

func (f *fakeLists) fail(err error) {
	f.mu.Lock()
	f.lists = domain.Lists{}
	f.err = err
	f.mu.Unlock()
}

func (f *fakeLists) FetchLists(context.Context) (domain.Lists, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists, f.err
}

// fakeSnapshots serves snapshots keyed by the id in the requested URL.
type fakeSnapshots struct {
	mu     sync.Mutex
	snaps  map[string]domain.Snapshot
	errs   map[string]error
	panics map[string]bool
	calls  map[string]int
	urls   map[string]string
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{
		snaps:  map[string]domain.Snapshot{},
		errs:   map[string]error{},
		panics: map[string]bool{},
		calls:  map[string]int{},
		urls:   map[string]string{},
	}
}

func (f *fakeSnapshots) set(s domain.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.URL == "" {
		s.URL = marketURL(s.ID)
	}
	f.snaps[s.ID] = s
	delete(f.errs, s.ID)
}

func (f *fakeSnapshots) remove(id string) {
	f.mu.Lock()
	delete(f.snaps, id)
	f.mu.Unlock()
}

func (f *fakeSnapshots) failWith(id string, err error) {
	f.mu.Lock()
	f.errs[id] = err
	f.mu.Unlock()
}

func (f *fakeSnapshots) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeSnapshots) FetchDetail(_ context.Context, url string) (*domain.Snapshot, error) {
	id := market.ExtractID(url)
	f.mu.Lock()
	f.calls[id]++
	f.urls[id] = url
	err := f.errs[id]
	panics := f.panics[id]
	s, ok := f.snaps[id]
	f.mu.Unlock()

	if panics {
		panic("selector exploded")
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	s.Options = domain.CloneOptions(s.Options)
	return &s, nil
}

// fakeNotifier records every message.
type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakeNotifier) all() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.msgs...)
}

func (f *fakeNotifier) count(kind domain.AnnouncementKind, id string) int {
	n := 0
	for _, m := range f.all() {
		if m.Event == string(kind) && (id == "" || m.Announcement.MarketID == id) {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) reset() {
	f.mu.Lock()
	f.msgs = nil
	f.mu.Unlock()
}

type failingStore struct {
	ledger.MemoryStore
	err error
}

func (f *failingStore) Save(context.Context, domain.LedgerDocument) error { return f.err }

type fakeLocks struct {
	err      error
	acquired int
	released int
}

func (f *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired++
	return func() { f.released++ }, nil
}

type fakeArchiver struct {
	archived []domain.Record
	err      error
}

func (f *fakeArchiver) ArchiveRetired(_ context.Context, recs []domain.Record) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.archived = append(f.archived, recs...)
	return "archive/retired.jsonl", nil
}

func (f *fakeArchiver) Backup(context.Context, domain.LedgerDocument) (string, error) {
	return "", errors.New("not used")
}

type harness struct {
	engine   *Engine
	lists    *fakeLists
	snaps    *fakeSnapshots
	notifier *fakeNotifier
	ledger   *ledger.Ledger
	store    *ledger.MemoryStore
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.BaseURL == "" {
		cfg.BaseURL = testBase
	}
	h := &harness{
		lists:    &fakeLists{},
		snaps:    newFakeSnapshots(),
		notifier: &fakeNotifier{},
		store:    ledger.NewMemoryStore(),
	}
	h.ledger = ledger.New(h.store, "chat-1", testLogger())
	h.engine = New(cfg, Deps{
		Lists:     h.lists,
		Snapshots: h.snaps,
		Ledger:    h.ledger,
		Notifier:  h.notifier,
	}, testLogger())
	return h
}

// seeded marks the ledger as already seeded so the next tick announces.
func (h *harness) seeded() *harness {
	h.ledger.SetSeeded(true)
	return h
}

func (h *harness) tick(t *testing.T) TickReport {
	t.Helper()
	rep, err := h.engine.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	return rep
}

func (h *harness) record(t *testing.T, id string) domain.Record {
	t.Helper()
	r, ok := h.ledger.Get(id)
	if !ok {
		t.Fatalf("no ledger record for %s", id)
	}
	return r
}

func opts(pairs ...any) []domain.Option {
	var out []domain.Option
	for i := 0; i+1 < len(pairs); i += 2 {
		o := domain.Option{Label: pairs[i].(string)}
		switch v := pairs[i+1].(type) {
		case float64:
			o.Pct = domain.Pct(v)
		case int:
			o.Pct = domain.Pct(float64(v))
		}
		out = append(out, o)
	}
	return out
}
