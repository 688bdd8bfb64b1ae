package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/territory/pkg/cache"
	"github.com/matzehuels/territory/pkg/core/layout"
	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/observability"
	"github.com/matzehuels/territory/pkg/store"
)

const keyTypeLayout = "layout"

// Runner computes layouts with caching.
//
// The Runner holds no results of its own; any number of goroutines may use
// one Runner concurrently as long as its Cache is safe for concurrent use.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// selects [cache.DefaultKeyer] and a nil logger discards output.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute lays out entities and reports timing and cache usage.
func (r *Runner) Execute(ctx context.Context, entities []model.Entity, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	res, hash, hit, err := r.layout(ctx, entities, opts)
	if err != nil {
		return nil, err
	}
	out := &Result{
		Layout:    res,
		InputHash: hash,
		Stats: Stats{
			EntityCount: len(entities),
			LayoutTime:  time.Since(start),
		},
		CacheInfo: CacheInfo{LayoutHit: hit},
	}

	r.Logger.Info("computed layout",
		"entities", len(entities),
		"boundary", boundaryString(res.Boundary),
		"cached", hit,
		"duration", out.Stats.LayoutTime)
	return out, nil
}

// LayoutWithCacheInfo returns the layout of entities and whether it came
// from the cache.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, entities []model.Entity, opts Options) (layout.Result, bool, error) {
	if err := opts.Validate(); err != nil {
		return layout.Result{}, false, err
	}
	res, _, hit, err := r.layout(ctx, entities, opts)
	return res, hit, err
}

// Layout is LayoutWithCacheInfo without the cache hit flag.
func (r *Runner) Layout(ctx context.Context, entities []model.Entity, opts Options) (layout.Result, error) {
	res, _, err := r.LayoutWithCacheInfo(ctx, entities, opts)
	return res, err
}

// LayoutFunc adapts the runner to the store's layout hook. Cached entries
// hold the unoriented layout, so zones with equal inputs share them; the
// result is oriented per zone on the way out. Cache failures never fail a
// layout; only a canceled context does.
func (r *Runner) LayoutFunc() store.LayoutFunc {
	return func(ctx context.Context, zone model.Zone, entities []model.Entity) (layout.Result, error) {
		res, err := r.Layout(ctx, entities, Options{Capacity: zone.Capacity})
		if err != nil {
			return res, err
		}
		return layout.Orient(res, zone.Direction), nil
	}
}

func (r *Runner) layout(ctx context.Context, entities []model.Entity, opts Options) (layout.Result, string, bool, error) {
	if err := ctx.Err(); err != nil {
		return layout.Result{}, "", false, err
	}
	hooks := observability.Cache()
	hash := InputHash(entities)
	key := r.Keyer.LayoutKey(hash, opts.LayoutKeyOpts())

	if !opts.Refresh {
		var cached layout.Result
		err := cache.GetJSON(ctx, r.Cache, key, &cached)
		switch {
		case err == nil:
			hooks.OnCacheHit(ctx, keyTypeLayout)
			return cached, hash, true, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return layout.Result{}, "", false, err
		case !errors.Is(err, cache.ErrCacheMiss):
			r.Logger.Warn("layout cache read failed", "key", key, "err", err)
		}
		hooks.OnCacheMiss(ctx, keyTypeLayout)
	}

	res := layout.Compute(entities, opts.Capacity)

	size, err := cache.SetJSON(ctx, r.Cache, key, res, cache.TTLLayout)
	if err != nil {
		r.Logger.Warn("layout cache write failed", "key", key, "err", err)
	} else {
		hooks.OnCacheSet(ctx, keyTypeLayout, size)
	}
	return res, hash, false, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func boundaryString(b layout.Boundary) string {
	return fmt.Sprintf("%dx%d", b.Width, b.Height)
}
