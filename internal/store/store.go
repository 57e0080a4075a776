// Package store persists scoring results.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"quill/internal/scoring"
)

var ErrNotFound = errors.New("store: record not found")

// Record is one scored document.
type Record struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Model      string            `json:"model,omitempty"`
	Provider   string            `json:"provider,omitempty"`
	Breakdown  scoring.Breakdown `json:"breakdown"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewRecord assigns a fresh id. An empty documentID gets one too.
func NewRecord(documentID string, b scoring.Breakdown) Record {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		documentID = uuid.NewString()
	}
	created := b.ScoredAt
	if created.IsZero() {
		created = time.Now()
	}
	return Record{ID: uuid.NewString(), DocumentID: documentID, Breakdown: b, CreatedAt: created.UTC()}
}

type Store interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (Record, error)
	// ListByDocument returns records oldest first.
	ListByDocument(ctx context.Context, documentID string) ([]Record, error)
	Close() error
}

func validate(r Record) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("store: id is required")
	}
	if strings.TrimSpace(r.DocumentID) == "" {
		return fmt.Errorf("store: document_id is required")
	}
	return nil
}

type Options struct {
	DatabaseURL string
	SQLitePath  string
}

// Open picks Postgres when a database URL is set, SQLite when a path is
// set, and memory otherwise. SQL stores are migrated before use.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   *SQLStore
		err error
	)
	switch {
	case strings.TrimSpace(opts.DatabaseURL) != "":
		s, err = OpenPostgres(ctx, opts.DatabaseURL)
	case strings.TrimSpace(opts.SQLitePath) != "":
		s, err = OpenSQLite(ctx, opts.SQLitePath)
	default:
		return NewMemory(), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
