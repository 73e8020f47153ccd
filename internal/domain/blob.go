package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// Archiver moves ledger data to cold storage.
type Archiver interface {
	// ArchiveRetired writes records dropped by compaction and returns the
	// object path.
	ArchiveRetired(ctx context.Context, records []Record) (string, error)
	// Backup writes a full copy of the ledger document.
	Backup(ctx context.Context, doc LedgerDocument) (string, error)
}
