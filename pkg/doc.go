// Package pkg provides the core libraries for Territory.
//
// # Overview
//
// Territory packs weighted entities into capacity-bounded zones and keeps
// those packings current while entities change. Every entity gets a
// rectangle proportional to its share of its zone's weight; zones are laid
// out around a central zone whose occupants are the heaviest entity of each
// other zone. The pkg directory is organized into four main areas:
//
//  1. [core] - Domain logic (entities and zones, packing, world positions)
//  2. [store] - The reconciling store that applies change events
//  3. [feed] - Data sources (memory, SQLite, MongoDB, Redis, recorded logs)
//  4. [server] - HTTP API and websocket notification stream
//
// # Architecture
//
// The typical data flow:
//
//	Source listing / change stream
//	         ↓
//	    [feed] package (decode and validate events)
//	         ↓
//	    [store] package (classify, dirty zones, batch)
//	         ↓
//	    [pipeline] package (cached layout per dirty zone)
//	         ↓
//	    [core/position] package (world placement)
//	         ↓
//	    notifications → log, websocket, Redis
//
// # Quick Start
//
// Pack one zone:
//
//	res := layout.Compute(entities, 100)
//	for _, p := range res.Placements {
//	    fmt.Println(p.EntityID, p.X, p.Y, p.Width, p.Height)
//	}
//
// Keep a whole territory in sync with a source:
//
//	zones, _ := config.LoadZones("zones.toml")
//	st := store.New(zones, store.WithSink(store.LogSink{Logger: logger}))
//	st.SeedFrom(ctx, src)
//	unsub, _ := st.Attach(ctx, src)
//	defer unsub()
//
// # Main Packages
//
// ## Core Domain Logic
//
// [core/model] - Entities, zones and compass directions.
//
// [core/layout] - The packing engine. Deterministic, heaviest first, with
// footprints shrunk until they fit.
//
// [core/position] - Places each zone's box around the central zone.
//
// ## Orchestration
//
// [store] - Canonical entity records, per-zone layouts and positions, and
// change classification into notification batches.
//
// [pipeline] - Layout runs with content-addressed caching, used by the
// store, the CLI and the server.
//
// ## Infrastructure
//
// [cache] - Cache backends: file (CLI), memory, Redis, and a null cache.
//
// [config] - Zones files (TOML) and application settings (viper).
//
// [observability] - Hook registry; [observability/prom] exports the hooks
// as Prometheus metrics.
//
// [io] - Entity fixtures and snapshot import/export.
//
// [errors] - Coded errors shared by every package.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                   # All tests
//	go test ./pkg/store/...             # Specific package
//	go test -run Example ./pkg/core/... # Examples only
//
// Redis and MongoDB integration tests run when TERRITORY_TEST_REDIS_URL,
// TERRITORY_TEST_REDIS_ADDR or TERRITORY_TEST_MONGO_URI are set.
//
// [core]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/core
// [core/model]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/core/model
// [core/layout]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/core/layout
// [core/position]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/core/position
// [store]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/store
// [feed]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/feed
// [server]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/server
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/config
// [observability]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/observability
// [observability/prom]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/observability/prom
// [io]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/io
// [errors]: https://pkg.go.dev/github.com/matzehuels/territory/pkg/errors
package pkg
