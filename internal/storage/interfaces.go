package storage

import (
	"context"
	"errors"
)

// ErrNotFound is wrapped by Load and Delete when the path holds nothing.
var ErrNotFound = errors.New("not found")

// Storage is a flat key/value store addressed by slash-separated relative
// paths. List patterns follow path.Match.
type Storage interface {
	Save(ctx context.Context, path string, data []byte) error
	Load(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, pattern string) ([]string, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
}
