// Package sqlite persists the ledger in a single-file SQLite database using
// the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_meta (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	seeded   INTEGER NOT NULL DEFAULT 0,
	target   TEXT NOT NULL DEFAULT '',
	saved_at TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS ledger_markets (
	id     TEXT PRIMARY KEY,
	record TEXT NOT NULL
);
`

// LedgerStore implements domain.LedgerStore. Meta lives in a one-row table
// and each record is one JSON row; Save rewrites both in one transaction.
type LedgerStore struct {
	db *sql.DB
}

// Open creates the parent directory, opens path in WAL mode and ensures
// the schema.
func Open(ctx context.Context, path string) (*LedgerStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One writer; the ledger is rewritten whole on each save.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: init %s: %w", path, err)
		}
	}
	return &LedgerStore{db: db}, nil
}

// Close closes the database.
func (s *LedgerStore) Close() error {
	return s.db.Close()
}

// Name identifies the backend in status output.
func (s *LedgerStore) Name() string { return "sqlite" }

// Load reads the ledger. An empty database yields an empty document.
func (s *LedgerStore) Load(ctx context.Context) (domain.LedgerDocument, error) {
	doc := domain.NewLedgerDocument()

	var (
		seeded  int
		savedAt string
	)
	err := s.db.QueryRowContext(ctx, `SELECT seeded, target, saved_at FROM ledger_meta WHERE id = 1`).
		Scan(&seeded, &doc.TargetChatID, &savedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return domain.LedgerDocument{}, fmt.Errorf("sqlite: load meta: %w", err)
	default:
		doc.Seeded = seeded != 0
		if savedAt != "" {
			if doc.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
				return domain.LedgerDocument{}, fmt.Errorf("sqlite: parse saved_at: %w", err)
			}
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, record FROM ledger_markets`)
	if err != nil {
		return domain.LedgerDocument{}, fmt.Errorf("sqlite: load markets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return domain.LedgerDocument{}, fmt.Errorf("sqlite: scan market: %w", err)
		}
		var rec domain.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return domain.LedgerDocument{}, fmt.Errorf("sqlite: decode market %s: %w", id, err)
		}
		rec.ID = id
		doc.Markets[id] = rec
	}
	if err := rows.Err(); err != nil {
		return domain.LedgerDocument{}, fmt.Errorf("sqlite: load markets rows: %w", err)
	}
	return doc, nil
}

// Save replaces the stored ledger with doc.
func (s *LedgerStore) Save(ctx context.Context, doc domain.LedgerDocument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seeded := 0
	if doc.Seeded {
		seeded = 1
	}
	savedAt := ""
	if !doc.SavedAt.IsZero() {
		savedAt = doc.SavedAt.UTC().Format(time.RFC3339Nano)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_meta (id, seeded, target, saved_at) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET seeded = excluded.seeded, target = excluded.target, saved_at = excluded.saved_at`,
		seeded, doc.TargetChatID, savedAt); err != nil {
		return fmt.Errorf("sqlite: save meta: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_markets`); err != nil {
		return fmt.Errorf("sqlite: clear markets: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_markets (id, record) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()
	for id, rec := range doc.Markets {
		rec.ID = id
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("sqlite: encode market %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, string(b)); err != nil {
			return fmt.Errorf("sqlite: insert market %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit save: %w", err)
	}
	return nil
}

var _ domain.LedgerStore = (*LedgerStore)(nil)
