package redis

import (
	"testing"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

func TestLedgerHashRoundTrip(t *testing.T) {
	saved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := domain.NewLedgerDocument()
	doc.Seeded = true
	doc.TargetChatID = "@alerts"
	doc.SavedAt = saved
	doc.Markets["X1"] = domain.Record{
		ID:            "X1",
		URL:           "https://example.com/market/X1",
		Status:        domain.StatusClosed,
		AnnouncedOpen: true,
		ClosedSnapshot: &domain.ClosedSnapshot{
			Options: []domain.Option{{Label: "Yes", Pct: domain.Pct(61)}, {Label: "No", Pct: domain.Pct(39)}},
		},
	}

	fields, err := encodeLedgerHash(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, ok := fields["market:X1"]; !ok {
		t.Fatalf("expected market:X1 field, got %v", fields)
	}

	str := make(map[string]string, len(fields))
	for k, v := range fields {
		str[k] = v.(string)
	}
	got, err := decodeLedgerHash(str)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Seeded || got.TargetChatID != "@alerts" || !got.SavedAt.Equal(saved) {
		t.Errorf("meta mismatch: %+v", got)
	}
	rec, ok := got.Markets["X1"]
	if !ok {
		t.Fatal("X1 missing after decode")
	}
	if rec.Status != domain.StatusClosed || !rec.AnnouncedOpen {
		t.Errorf("record mismatch: %+v", rec)
	}
	if rec.ClosedSnapshot == nil || *rec.ClosedSnapshot.Options[0].Pct != 61 {
		t.Errorf("closed snapshot lost: %+v", rec.ClosedSnapshot)
	}
}

func TestDecodeLedgerHashEmpty(t *testing.T) {
	doc, err := decodeLedgerHash(nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Seeded || len(doc.Markets) != 0 || doc.Markets == nil {
		t.Errorf("expected empty unseeded document, got %+v", doc)
	}
}

func TestDecodeLedgerHashRejectsCorruptRecord(t *testing.T) {
	_, err := decodeLedgerHash(map[string]string{"market:X1": "{not json"})
	if err == nil {
		t.Fatal("expected error for corrupt record")
	}
}

func TestKeyHelpers(t *testing.T) {
	if got := lockKey("marketwatch:tick"); got != "lock:marketwatch:tick" {
		t.Errorf("lockKey = %q", got)
	}
	if got := rateLimitKey("10.0.0.1"); got != "ratelimit:10.0.0.1" {
		t.Errorf("rateLimitKey = %q", got)
	}
}

func TestDecodePayload(t *testing.T) {
	if b, ok := decodePayload("abc"); !ok || string(b) != "abc" {
		t.Errorf("string payload: %q %v", b, ok)
	}
	if b, ok := decodePayload([]byte("xyz")); !ok || string(b) != "xyz" {
		t.Errorf("bytes payload: %q %v", b, ok)
	}
	if _, ok := decodePayload(42); ok {
		t.Error("int payload should be rejected")
	}
}
