package ledger

import (
	"context"
	"sync"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// MemoryStore keeps the document in process. It backs tests and the
// "memory" ledger backend.
type MemoryStore struct {
	mu    sync.Mutex
	doc   *domain.LedgerDocument
	saves int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Name implements domain.LedgerStore.
func (s *MemoryStore) Name() string { return "memory" }

// Load implements domain.LedgerStore.
func (s *MemoryStore) Load(_ context.Context) (domain.LedgerDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return domain.NewLedgerDocument(), nil
	}
	return s.doc.Clone(), nil
}

// Save implements domain.LedgerStore.
func (s *MemoryStore) Save(_ context.Context, doc domain.LedgerDocument) error {
	c := doc.Clone()
	s.mu.Lock()
	s.doc = &c
	s.saves++
	s.mu.Unlock()
	return nil
}

// Saves returns how many times Save has been called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
