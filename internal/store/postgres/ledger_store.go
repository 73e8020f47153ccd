package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// DefaultLedgerName is the ledger_documents row used when none is given.
const DefaultLedgerName = "default"

// LedgerStore implements domain.LedgerStore as one ledger_documents row
// with the market map in a JSONB column.
type LedgerStore struct {
	pool *pgxpool.Pool
	name string
}

// NewLedgerStore creates a LedgerStore for the named row.
func NewLedgerStore(pool *pgxpool.Pool, name string) *LedgerStore {
	if name == "" {
		name = DefaultLedgerName
	}
	return &LedgerStore{pool: pool, name: name}
}

// Name identifies the backend in status output.
func (s *LedgerStore) Name() string { return "postgres" }

// Load reads the row. A missing row yields an empty document.
func (s *LedgerStore) Load(ctx context.Context) (domain.LedgerDocument, error) {
	const query = `SELECT seeded, target, markets, saved_at FROM ledger_documents WHERE name = $1`

	doc := domain.NewLedgerDocument()
	var markets []byte
	err := s.pool.QueryRow(ctx, query, s.name).Scan(&doc.Seeded, &doc.TargetChatID, &markets, &doc.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewLedgerDocument(), nil
	}
	if err != nil {
		return domain.LedgerDocument{}, fmt.Errorf("postgres: load ledger %s: %w", s.name, err)
	}

	if len(markets) > 0 {
		if err := json.Unmarshal(markets, &doc.Markets); err != nil {
			return domain.LedgerDocument{}, fmt.Errorf("postgres: decode ledger %s: %w", s.name, err)
		}
	}
	if doc.Markets == nil {
		doc.Markets = make(map[string]domain.Record)
	}
	for id, rec := range doc.Markets {
		if rec.ID == "" {
			rec.ID = id
			doc.Markets[id] = rec
		}
	}
	return doc, nil
}

// Save upserts the row.
func (s *LedgerStore) Save(ctx context.Context, doc domain.LedgerDocument) error {
	markets := doc.Markets
	if markets == nil {
		markets = map[string]domain.Record{}
	}
	payload, err := json.Marshal(markets)
	if err != nil {
		return fmt.Errorf("postgres: encode ledger %s: %w", s.name, err)
	}

	const query = `
		INSERT INTO ledger_documents (name, seeded, target, markets, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			seeded   = EXCLUDED.seeded,
			target   = EXCLUDED.target,
			markets  = EXCLUDED.markets,
			saved_at = EXCLUDED.saved_at`
	if _, err := s.pool.Exec(ctx, query, s.name, doc.Seeded, doc.TargetChatID, payload, doc.SavedAt); err != nil {
		return fmt.Errorf("postgres: save ledger %s: %w", s.name, err)
	}
	return nil
}

var _ domain.LedgerStore = (*LedgerStore)(nil)
