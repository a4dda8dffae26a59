package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a storage key names no stored object.
var ErrNotFound = errors.New("object not found")

// Store defines the contract for saving, retrieving, and deleting binary objects.
// Naming and lifecycle policy live with the caller; a Store only moves bytes.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
