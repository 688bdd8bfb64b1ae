// Package cache stores computed layouts between runs and between processes.
//
// All backends implement [Cache]. A miss is reported as (nil, false, nil);
// errors are reserved for backend failures. Keys are built by a [Keyer] so
// that every component agrees on the key layout, and a [ScopedKeyer] can
// give several deployments sharing one backend their own namespace.
//
// Backends:
//   - [NullCache]: stores nothing
//   - [FileCache]: one JSON file per entry, for the CLI
//   - [MemoryCache]: in-process, expiring (patrickmn/go-cache)
//   - [RedisCache]: shared between processes (go-redis)
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// TTLs for cached values. Layouts are pure functions of their key, so they
// only expire to bound storage.
const (
	TTLLayout = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is a miss,
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero or less never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// GetJSON decodes the value stored under key into v. It returns
// [ErrCacheMiss] when nothing usable is stored.
func GetJSON(ctx context.Context, c Cache, key string, v any) error {
	data, ok, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(data, v); err != nil {
		_ = c.Delete(ctx, key)
		return ErrCacheMiss
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return len(data), c.Set(ctx, key, data, ttl)
}
