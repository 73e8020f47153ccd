package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

const (
	retiredPrefix = "archive/retired/"
	backupPrefix  = "backups/ledger/"
)

// Archiver implements domain.Archiver. Retired records go out as JSONL
// under archive/retired/YYYY-MM-DD/, full ledger backups as JSON under
// backups/ledger/. Backups larger than partSize use multipart upload.
type Archiver struct {
	writer   domain.BlobWriter
	reader   domain.BlobReader
	partSize int64
	now      func() time.Time
}

// NewArchiver creates an Archiver. reader may be nil when LatestBackup is
// not needed.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader) *Archiver {
	return &Archiver{
		writer:   writer,
		reader:   reader,
		partSize: minPartSize,
		now:      time.Now,
	}
}

// ArchiveRetired uploads records as one JSONL object and returns its path.
func (a *Archiver) ArchiveRetired(ctx context.Context, records []domain.Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive retired marshal: %w", err)
	}
	now := a.now().UTC()
	path := fmt.Sprintf("%s%s/%s.jsonl", retiredPrefix, now.Format("2006-01-02"), stamp(now))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive retired upload: %w", err)
	}
	return path, nil
}

// Backup uploads doc as indented JSON and returns its path.
func (a *Archiver) Backup(ctx context.Context, doc domain.LedgerDocument) (string, error) {
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: backup marshal: %w", err)
	}
	path := backupPrefix + stamp(a.now().UTC()) + ".json"

	if int64(len(buf)) > a.partSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), a.partSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json")
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: backup upload: %w", err)
	}
	return path, nil
}

// LatestBackup downloads the newest ledger backup. It returns
// domain.ErrNotFound when no backup exists.
func (a *Archiver) LatestBackup(ctx context.Context) (domain.LedgerDocument, string, error) {
	if a.reader == nil {
		return domain.LedgerDocument{}, "", fmt.Errorf("s3blob: latest backup: no reader configured")
	}
	infos, err := a.reader.List(ctx, backupPrefix)
	if err != nil {
		return domain.LedgerDocument{}, "", fmt.Errorf("s3blob: latest backup: %w", err)
	}
	path := latestPath(infos, ".json")
	if path == "" {
		return domain.LedgerDocument{}, "", fmt.Errorf("s3blob: latest backup: %w", domain.ErrNotFound)
	}

	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return domain.LedgerDocument{}, "", err
	}
	defer body.Close()

	doc := domain.NewLedgerDocument()
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return domain.LedgerDocument{}, "", fmt.Errorf("s3blob: decode backup %s: %w", path, err)
	}
	if doc.Markets == nil {
		doc.Markets = make(map[string]domain.Record)
	}
	return doc, path, nil
}

// latestPath picks the lexically greatest key with suffix. Keys embed a
// sortable UTC timestamp.
func latestPath(infos []domain.BlobInfo, suffix string) string {
	var paths []string
	for _, info := range infos {
		if strings.HasSuffix(info.Path, suffix) {
			paths = append(paths, info.Path)
		}
	}
	if len(paths) == 0 {
		return ""
	}
	sort.Strings(paths)
	return paths[len(paths)-1]
}

func stamp(t time.Time) string {
	return t.Format("20060102T150405.000000000Z")
}

// marshalJSONL encodes each element as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
