// Package storage persists uploaded PDFs and page images by key. Keys are
// slash separated paths such as "uploads/7/report.pdf".
package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Read when the key has no object.
var ErrNotExist = errors.New("object does not exist")

type Storage interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
	// EnsureDir prepares a key prefix for writes.
	EnsureDir(ctx context.Context, prefix string) error
}
