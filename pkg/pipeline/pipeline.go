// Package pipeline runs the Layout Engine behind a content-addressed cache.
//
// A layout depends only on the zone capacity and on the ids and weights of
// the entities being packed, so the runner hashes exactly those inputs and
// reuses any layout stored under the same key. The CLI uses it to skip
// recomputation for unchanged fixtures, and the server installs
// [Runner.LayoutFunc] into the store so that replicas sharing a Redis cache
// compute each distinct zone layout once.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	res, err := runner.Execute(ctx, entities, pipeline.Options{Capacity: 100})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Layout.Boundary, res.CacheInfo.LayoutHit)
//
// Or plug it into a store:
//
//	s := store.New(zones, store.WithLayoutFunc(runner.LayoutFunc()))
package pipeline

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/matzehuels/territory/pkg/cache"
	"github.com/matzehuels/territory/pkg/core/layout"
	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

// LayoutVersion is mixed into every cache key. Bump it whenever the packing
// algorithm changes so stale layouts are never served.
const LayoutVersion = "1"

// MaxCapacity bounds the capacity accepted from user input.
const MaxCapacity = 1 << 20

// =============================================================================
// Options
// =============================================================================

// Options configures one layout run.
type Options struct {
	Capacity int  `json:"capacity"`
	Refresh  bool `json:"refresh,omitempty"` // skip cache lookup, still store
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Capacity <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "capacity must be positive, got %d", o.Capacity)
	}
	if o.Capacity > MaxCapacity {
		return errors.New(errors.ErrCodeInvalidInput, "capacity %d exceeds maximum %d", o.Capacity, MaxCapacity)
	}
	return nil
}

// LayoutKeyOpts returns the cache key options for these options.
func (o Options) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		Capacity: o.Capacity,
		Version:  LayoutVersion,
	}
}

// =============================================================================
// Result
// =============================================================================

// Result is the output of [Runner.Execute].
type Result struct {
	Layout    layout.Result `json:"layout"`
	InputHash string        `json:"inputHash"`
	Stats     Stats         `json:"stats"`
	CacheInfo CacheInfo     `json:"cacheInfo"`
}

// Stats records what a run did.
type Stats struct {
	EntityCount int           `json:"entityCount"`
	LayoutTime  time.Duration `json:"layoutTime"`
}

// CacheInfo reports which stages were served from cache.
type CacheInfo struct {
	LayoutHit bool `json:"layoutHit"`
}

// =============================================================================
// Input hashing
// =============================================================================

// InputHash hashes the fields of entities the layout depends on, in packing
// order. Two lists that pack identically hash identically regardless of
// input order or payload fields.
func InputHash(entities []model.Entity) string {
	sorted := slices.Clone(entities)
	model.SortByWeight(sorted)

	type input struct {
		ID     string  `json:"i"`
		Weight float64 `json:"w"`
	}
	in := make([]input, len(sorted))
	for i, e := range sorted {
		in[i] = input{ID: e.ID, Weight: e.Weight}
	}
	data, _ := json.Marshal(in)
	return cache.Hash(data)
}
