package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// DefaultLedgerKey is the hash holding the ledger.
const DefaultLedgerKey = "marketwatch:ledger"

const (
	fieldMeta    = "meta"
	marketPrefix = "market:"
)

// ledgerMeta is the non-market part of the document, stored in one field.
type ledgerMeta struct {
	Seeded       bool      `json:"seeded"`
	TargetChatID string    `json:"target_chat_id,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// LedgerStore implements domain.LedgerStore as a single Redis hash: one
// "meta" field plus one "market:<id>" field per record. Save replaces the
// hash in a MULTI/EXEC transaction so readers never see a partial ledger.
type LedgerStore struct {
	rdb *redis.Client
	key string
}

// NewLedgerStore creates a LedgerStore under key, or DefaultLedgerKey when
// key is empty.
func NewLedgerStore(c *Client, key string) *LedgerStore {
	if key == "" {
		key = DefaultLedgerKey
	}
	return &LedgerStore{rdb: c.Underlying(), key: key}
}

// Name identifies the backend in status output.
func (s *LedgerStore) Name() string { return "redis" }

// Load reads the ledger. A missing key yields an empty document.
func (s *LedgerStore) Load(ctx context.Context) (domain.LedgerDocument, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.LedgerDocument{}, fmt.Errorf("redis: load ledger: %w", err)
	}
	return decodeLedgerHash(fields)
}

// Save overwrites the ledger.
func (s *LedgerStore) Save(ctx context.Context, doc domain.LedgerDocument) error {
	fields, err := encodeLedgerHash(doc)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.key)
	pipe.HSet(ctx, s.key, fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save ledger: %w", err)
	}
	return nil
}

func encodeLedgerHash(doc domain.LedgerDocument) (map[string]any, error) {
	meta, err := json.Marshal(ledgerMeta{
		Seeded:       doc.Seeded,
		TargetChatID: doc.TargetChatID,
		SavedAt:      doc.SavedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: encode ledger meta: %w", err)
	}
	fields := make(map[string]any, len(doc.Markets)+1)
	fields[fieldMeta] = string(meta)
	for id, rec := range doc.Markets {
		rec.ID = id
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("redis: encode market %s: %w", id, err)
		}
		fields[marketPrefix+id] = string(b)
	}
	return fields, nil
}

func decodeLedgerHash(fields map[string]string) (domain.LedgerDocument, error) {
	doc := domain.NewLedgerDocument()
	for name, raw := range fields {
		switch {
		case name == fieldMeta:
			var meta ledgerMeta
			if err := json.Unmarshal([]byte(raw), &meta); err != nil {
				return domain.LedgerDocument{}, fmt.Errorf("redis: decode ledger meta: %w", err)
			}
			doc.Seeded = meta.Seeded
			doc.TargetChatID = meta.TargetChatID
			doc.SavedAt = meta.SavedAt
		case strings.HasPrefix(name, marketPrefix):
			id := strings.TrimPrefix(name, marketPrefix)
			var rec domain.Record
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				return domain.LedgerDocument{}, fmt.Errorf("redis: decode market %s: %w", id, err)
			}
			rec.ID = id
			doc.Markets[id] = rec
		}
	}
	return doc, nil
}

var _ domain.LedgerStore = (*LedgerStore)(nil)
