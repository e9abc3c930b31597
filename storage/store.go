// Package storage provides the device-local key/value stores that hold the
// persisted login session. Multi-key writes and deletes are atomic in every
// backend, so readers never observe half of a session.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// Store is a string key/value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// GetMany returns the present keys among keys, read as one snapshot.
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	// SetMany writes all entries atomically. A ttl <= 0 means no expiry.
	SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error
	// DeleteMany removes all keys atomically. Missing keys are ignored.
	DeleteMany(ctx context.Context, keys ...string) error
	Close() error
}
