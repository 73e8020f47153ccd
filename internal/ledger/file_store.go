package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// FileStore keeps the ledger document as one JSON file. Saves go through a
// temp file in the same directory followed by a rename.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Name implements domain.LedgerStore.
func (s *FileStore) Name() string { return "file" }

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

// Load implements domain.LedgerStore. A missing file yields an empty document.
func (s *FileStore) Load(_ context.Context) (domain.LedgerDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewLedgerDocument(), nil
	}
	if err != nil {
		return domain.LedgerDocument{}, fmt.Errorf("ledger: read %s: %w", s.path, err)
	}
	return DecodeDocument(data)
}

// Save implements domain.LedgerStore.
func (s *FileStore) Save(_ context.Context, doc domain.LedgerDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: encode document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ledger: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("ledger: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("ledger: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("ledger: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ledger: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("ledger: rename into %s: %w", s.path, err)
	}
	return nil
}

// DecodeDocument parses a serialized document. Empty input yields an empty
// document.
func DecodeDocument(data []byte) (domain.LedgerDocument, error) {
	if len(data) == 0 {
		return domain.NewLedgerDocument(), nil
	}
	var doc domain.LedgerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.LedgerDocument{}, fmt.Errorf("ledger: decode document: %w", err)
	}
	if doc.Markets == nil {
		doc.Markets = make(map[string]domain.Record)
	}
	for id, r := range doc.Markets {
		if r.ID == "" {
			r.ID = id
			doc.Markets[id] = r
		}
	}
	return doc, nil
}

// EncodeDocument serializes doc in the layout every blob-style backend stores.
func EncodeDocument(doc domain.LedgerDocument) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode document: %w", err)
	}
	return data, nil
}
