package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const reportContentType = "application/gzip"

// Exporter writes gzip-compressed text reports.
type Exporter struct {
	store Store
}

func NewExporter(store Store) *Exporter {
	return &Exporter{store: store}
}

// ReportKey is reports/<document>/<record>.txt.gz.
func ReportKey(documentID, recordID string) string {
	return path.Join("reports", strings.TrimSpace(documentID), strings.TrimSpace(recordID)+".txt.gz")
}

// Key is ReportKey, so callers holding an *Exporter need not import the
// key layout.
func (e *Exporter) Key(documentID, recordID string) string {
	return ReportKey(documentID, recordID)
}

// Reports lists the exported report keys of a document.
func (e *Exporter) Reports(ctx context.Context, documentID string) ([]string, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("list reports: document id is required")
	}
	return e.store.List(ctx, path.Join("reports", strings.TrimSpace(documentID))+"/")
}

// Export uploads report and returns its object key.
func (e *Exporter) Export(ctx context.Context, documentID, recordID, report string) (string, error) {
	if strings.TrimSpace(documentID) == "" || strings.TrimSpace(recordID) == "" {
		return "", fmt.Errorf("export report: document and record ids are required")
	}
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	zw.Name = recordID + ".txt"
	if _, err := io.WriteString(zw, report); err != nil {
		return "", fmt.Errorf("compress report: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress report: %w", err)
	}
	key := ReportKey(documentID, recordID)
	if err := e.store.Put(ctx, key, buf.Bytes(), reportContentType); err != nil {
		return "", fmt.Errorf("upload report %s: %w", key, err)
	}
	return key, nil
}

// Read downloads and decompresses a report written by Export.
func (e *Exporter) Read(ctx context.Context, key string) (string, error) {
	raw, err := e.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("report %s: %w", key, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("report %s: %w", key, err)
	}
	return string(out), nil
}

// URL returns a download link for key, or "" when the store has none.
func (e *Exporter) URL(ctx context.Context, key string) (string, error) {
	return e.store.URL(ctx, key)
}
