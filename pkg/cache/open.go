package cache

import (
	"context"
	"fmt"
	"time"
)

// Backend names accepted by [Open].
const (
	BackendNone   = "none"
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options select and configure a backend.
type Options struct {
	Backend  string
	Dir      string        // file
	Addr     string        // redis
	Password string        // redis
	DB       int           // redis
	Cleanup  time.Duration // memory purge interval
}

// Open creates the backend named by opts.Backend. An empty name means
// [BackendNone].
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendFile:
		c, err := NewFileCache(opts.Dir)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendMemory:
		cleanup := opts.Cleanup
		if cleanup == 0 {
			cleanup = 10 * time.Minute
		}
		return NewMemoryCache(cleanup), nil
	case BackendRedis:
		c, err := NewRedisCache(ctx, opts.Addr, opts.Password, opts.DB)
		if err != nil {
			return nil, fmt.Errorf("redis %s: %w", opts.Addr, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
}
