// Package store holds the process-local and shared state backends used by
// the lockout tracker, MFA broker, session registry and audit streams.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or has expired
var ErrNotFound = errors.New("store: key not found")

// KV is a small key/value store with atomic per-key compare operations.
// A ttl of zero or less means the entry never expires.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// CompareAndSwap writes next only if the current value equals old.
	// A nil old requires the key to be absent.
	CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error)

	// CompareAndDelete removes key only if its current value equals old.
	CompareAndDelete(ctx context.Context, key string, old []byte) (bool, error)

	// Scan returns every live entry whose key starts with prefix.
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)
}

// Sweeper is implemented by stores that need expired entries purged
type Sweeper interface {
	Sweep(ctx context.Context) int
}
