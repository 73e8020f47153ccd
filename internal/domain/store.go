package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// LedgerDocument is the persisted ledger layout: the full market map plus
// the global seeding flag and destination override. It is rewritten
// wholesale on every save.
type LedgerDocument struct {
	Markets      map[string]Record `json:"markets"`
	Seeded       bool              `json:"seeded"`
	TargetChatID string            `json:"target_chat_id,omitempty"`
	SavedAt      time.Time         `json:"saved_at"`
}

// NewLedgerDocument returns an empty, unseeded document.
func NewLedgerDocument() LedgerDocument {
	return LedgerDocument{Markets: make(map[string]Record)}
}

// Clone returns a deep copy of d.
func (d LedgerDocument) Clone() LedgerDocument {
	out := d
	out.Markets = make(map[string]Record, len(d.Markets))
	for id, r := range d.Markets {
		out.Markets[id] = r.Clone()
	}
	return out
}

// LedgerStore persists a LedgerDocument. Load returns an empty document (not
// an error) when nothing has been saved yet.
type LedgerStore interface {
	Load(ctx context.Context) (LedgerDocument, error)
	Save(ctx context.Context, doc LedgerDocument) error
	Name() string
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	MarketID  string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of delivered announcements.
type AuditStore interface {
	Log(ctx context.Context, event, marketID string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
