package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingStore struct{ err error }

func (f failingStore) Name() string { return "failing" }
func (f failingStore) Load(context.Context) (domain.LedgerDocument, error) {
	return domain.LedgerDocument{}, f.err
}
func (f failingStore) Save(context.Context, domain.LedgerDocument) error { return f.err }

func TestLedgerGetReturnsCopy(t *testing.T) {
	l := New(NewMemoryStore(), "", testLogger())
	l.Upsert("X1", domain.Record{
		Status:   domain.StatusOpen,
		LastSeen: &domain.SeenState{Title: "t", Options: []domain.Option{{Label: "A", Pct: domain.Pct(60)}}},
	})

	r, ok := l.Get("X1")
	if !ok {
		t.Fatal("expected record")
	}
	if r.ID != "X1" {
		t.Errorf("ID = %q, want X1", r.ID)
	}
	*r.LastSeen.Options[0].Pct = 1
	r.LastSeen.Title = "mutated"

	again, _ := l.Get("X1")
	if again.LastSeen.Title != "t" || *again.LastSeen.Options[0].Pct != 60 {
		t.Fatalf("ledger record mutated through copy: %+v", again.LastSeen)
	}
}

func TestLedgerPersistReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	l := New(store, "default-chat", testLogger())
	l.Upsert("B", domain.Record{Status: domain.StatusClosed, AnnouncedClosed: true})
	l.Upsert("A", domain.Record{Status: domain.StatusOpen})
	l.SetSeeded(true)
	l.SetTargetChatID("override")
	if err := l.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	reloaded := New(store, "default-chat", testLogger())
	if err := reloaded.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !reloaded.Seeded() {
		t.Error("seeded flag lost")
	}
	if got := reloaded.TargetChatID(); got != "override" {
		t.Errorf("TargetChatID = %q, want override", got)
	}
	all := reloaded.All()
	if len(all) != 2 || all[0].ID != "A" || all[1].ID != "B" {
		t.Fatalf("All() = %+v", all)
	}
	if !all[1].AnnouncedClosed {
		t.Error("AnnouncedClosed lost")
	}
	if reloaded.SavedAt().IsZero() {
		t.Error("SavedAt not recorded")
	}
}

func TestLedgerTargetChatIDDefault(t *testing.T) {
	l := New(NewMemoryStore(), "cfg", testLogger())
	if got := l.TargetChatID(); got != "cfg" {
		t.Errorf("TargetChatID = %q, want cfg", got)
	}
	l.SetTargetChatID("123")
	if got := l.TargetChatID(); got != "123" {
		t.Errorf("TargetChatID = %q, want 123", got)
	}
	l.SetTargetChatID("")
	if got := l.TargetChatID(); got != "cfg" {
		t.Errorf("TargetChatID after clear = %q, want cfg", got)
	}
}

func TestLedgerPersistError(t *testing.T) {
	boom := errors.New("disk full")
	l := New(failingStore{err: boom}, "", testLogger())
	if err := l.Persist(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Persist error = %v, want wrapping %v", err, boom)
	}
	if err := l.Reload(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Reload error = %v, want wrapping %v", err, boom)
	}
}

func TestLedgerStats(t *testing.T) {
	l := New(NewMemoryStore(), "chat", testLogger())
	l.Upsert("1", domain.Record{Status: domain.StatusOpen, AnnouncedOpen: true, WasTrending: true})
	l.Upsert("2", domain.Record{Status: domain.StatusClosed, AnnouncedOpen: true, AnnouncedClosed: true})
	l.Upsert("3", domain.Record{Status: domain.StatusResolved, AnnouncedResolved: true, Retired: true})
	l.SetSeeded(true)

	s := l.Stats()
	want := Stats{
		Total: 3, Open: 1, Closed: 1, Resolved: 1, Retired: 1,
		AnnouncedOpen: 2, AnnouncedClosed: 1, AnnouncedResolved: 1, Trending: 1,
		Seeded: true, TargetChatID: "chat", Backend: "memory",
	}
	if s != want {
		t.Errorf("Stats() = %+v, want %+v", s, want)
	}
}

func TestLedgerDelete(t *testing.T) {
	l := New(NewMemoryStore(), "", testLogger())
	l.Upsert("a", domain.Record{})
	l.Upsert("b", domain.Record{})
	l.Delete("a")
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}
	if ids := l.IDs(); len(ids) != 1 || ids[0] != "b" {
		t.Errorf("IDs = %v", ids)
	}
}

func TestFileStoreMissingFileLoadsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope", "state.json"))
	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Seeded || len(doc.Markets) != 0 || doc.Markets == nil {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "state.json")
	s := NewFileStore(path)

	doc := domain.NewLedgerDocument()
	doc.Seeded = true
	doc.Markets["X123"] = domain.Record{
		ID:     "X123",
		Status: domain.StatusClosed,
		ClosedSnapshot: &domain.ClosedSnapshot{
			Options: []domain.Option{{Label: "Home", Pct: domain.Pct(55)}, {Label: "Away", Pct: domain.Pct(45)}},
		},
	}
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the state file, found %d entries", len(entries))
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := got.Markets["X123"]
	if !got.Seeded || r.ClosedSnapshot == nil || len(r.ClosedSnapshot.Options) != 2 {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if *r.ClosedSnapshot.Options[0].Pct != 55 {
		t.Errorf("pct = %v, want 55", *r.ClosedSnapshot.Options[0].Pct)
	}
}

func TestDecodeDocumentFillsIDs(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"markets":{"m1":{"status":"open"}},"seeded":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Markets["m1"].ID != "m1" {
		t.Errorf("ID not backfilled: %+v", doc.Markets["m1"])
	}
	if _, err := DecodeDocument([]byte("{broken")); err == nil {
		t.Error("expected decode error")
	}
}

func TestLedgerRestorePersists(t *testing.T) {
	store := NewMemoryStore()
	l := New(store, "", testLogger())

	doc := domain.NewLedgerDocument()
	doc.Seeded = true
	doc.TargetChatID = "-42"
	doc.Markets["M1"] = domain.Record{ID: "M1", Status: domain.StatusClosed, AnnouncedClosed: true}

	if err := l.Restore(context.Background(), doc); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	doc.Markets["M2"] = domain.Record{ID: "M2"}

	if l.Len() != 1 || !l.Seeded() || l.TargetChatID() != "-42" {
		t.Errorf("restored state = len %d seeded %v chat %q", l.Len(), l.Seeded(), l.TargetChatID())
	}
	if store.Saves() != 1 {
		t.Errorf("saves = %d, want 1", store.Saves())
	}
}
