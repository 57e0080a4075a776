// Package artifact exports scoring reports to object storage.
package artifact

import (
	"context"
	"errors"
)

// Store is a flat key/value object store.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the keys under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// URL returns a time-limited download link, or "" when the backend has none.
	URL(ctx context.Context, key string) (string, error)
}

var ErrNotFound = errors.New("artifact not found")
