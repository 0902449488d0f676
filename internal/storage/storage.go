package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrExists is returned by Save when the key is already taken.
var ErrExists = errors.New("object already exists")

// Object describes a stored upload as seen by Walk.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Backend stores uploads under flat keys.
type Backend interface {
	// Save writes r under key and fails with ErrExists rather than overwrite.
	// A failed Save leaves nothing behind.
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	Walk(ctx context.Context, fn func(Object) error) error
	// URL is the public address of key. baseURL is the deployment's own
	// scheme://host, used by backends served through this server.
	URL(baseURL, key string) string
}
