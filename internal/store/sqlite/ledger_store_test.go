package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

func openTemp(t *testing.T) (*LedgerStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "ledger.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestLoadEmpty(t *testing.T) {
	s, _ := openTemp(t)
	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Seeded || len(doc.Markets) != 0 || doc.Markets == nil {
		t.Errorf("expected empty document, got %+v", doc)
	}
}

func TestSaveLoadReplaces(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	saved := time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)
	doc := domain.NewLedgerDocument()
	doc.Seeded = true
	doc.TargetChatID = "-100123"
	doc.SavedAt = saved
	doc.Markets["A"] = domain.Record{ID: "A", Status: domain.StatusOpen, AnnouncedOpen: true}
	doc.Markets["B"] = domain.Record{ID: "B", Status: domain.StatusResolved, Winner: "Yes", Retired: true}
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	delete(doc.Markets, "B")
	doc.Markets["A"] = domain.Record{ID: "A", Status: domain.StatusClosed, AnnouncedOpen: true, AnnouncedClosed: true}
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	_ = s.Close()

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Seeded || got.TargetChatID != "-100123" || !got.SavedAt.Equal(saved) {
		t.Errorf("meta mismatch: %+v", got)
	}
	if len(got.Markets) != 1 {
		t.Fatalf("markets = %d, want 1", len(got.Markets))
	}
	if a := got.Markets["A"]; a.Status != domain.StatusClosed || !a.AnnouncedClosed {
		t.Errorf("record A = %+v", a)
	}
}

func TestName(t *testing.T) {
	s, _ := openTemp(t)
	if s.Name() != "sqlite" {
		t.Errorf("Name() = %q", s.Name())
	}
}
