// Package observability lets the store, feeds, caches and server report
// what they do without depending on a metrics backend.
//
// Each area has a hook interface with a no-op default. The binary registers
// a backend once at startup; libraries only ever call the getters:
//
//	m, _ := prom.New(prometheus.NewRegistry())
//	observability.Register(m) // installs every hook interface m implements
//
//	start := time.Now()
//	res, err := layoutZone(ctx, zone)
//	observability.Store().OnLayout(ctx, zone.ID, len(res.Placements), time.Since(start), err)
//
// The Prometheus backend lives in the prom subpackage.
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from the reconciling store.
type StoreHooks interface {
	// OnIngest records one ingestion call.
	OnIngest(ctx context.Context, events, dirtyZones int, duration time.Duration)

	// OnNotification records one classified event.
	OnNotification(ctx context.Context, kind string)

	// OnDrop records a rejected event, labelled by error code.
	OnDrop(ctx context.Context, code string)

	// OnLayout records one layout recomputation for a zone.
	OnLayout(ctx context.Context, zoneID string, placements int, duration time.Duration, err error)

	// OnPositions records a position pass over count zones.
	OnPositions(ctx context.Context, count int)
}

// =============================================================================
// Feed Hooks
// =============================================================================

// FeedHooks receives events from change-feed sources.
type FeedHooks interface {
	// OnSubscribe records a new subscription on the named source.
	OnSubscribe(ctx context.Context, source string)

	// OnUnsubscribe records a subscription ending.
	OnUnsubscribe(ctx context.Context, source string)

	// OnEvent records one decoded event.
	OnEvent(ctx context.Context, source, eventType string)

	// OnDecodeError records a payload rejected at the boundary.
	OnDecodeError(ctx context.Context, source string, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP API.
type HTTPHooks interface {
	// OnResponse records a served request.
	OnResponse(ctx context.Context, method, route string, statusCode int, duration time.Duration)

	// OnStreamClients records the number of connected websocket clients.
	OnStreamClients(ctx context.Context, n int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnIngest(context.Context, int, int, time.Duration)           {}
func (NoopStoreHooks) OnNotification(context.Context, string)                      {}
func (NoopStoreHooks) OnDrop(context.Context, string)                              {}
func (NoopStoreHooks) OnLayout(context.Context, string, int, time.Duration, error) {}
func (NoopStoreHooks) OnPositions(context.Context, int)                            {}

// NoopFeedHooks is a no-op implementation of FeedHooks.
type NoopFeedHooks struct{}

func (NoopFeedHooks) OnSubscribe(context.Context, string)          {}
func (NoopFeedHooks) OnUnsubscribe(context.Context, string)        {}
func (NoopFeedHooks) OnEvent(context.Context, string, string)      {}
func (NoopFeedHooks) OnDecodeError(context.Context, string, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnStreamClients(context.Context, int)                           {}

// =============================================================================
// Registry
// =============================================================================

type registry struct {
	mu    sync.RWMutex
	store StoreHooks
	feed  FeedHooks
	cache CacheHooks
	http  HTTPHooks
}

var hooks = newRegistry()

func newRegistry() *registry {
	return &registry{
		store: NoopStoreHooks{},
		feed:  NoopFeedHooks{},
		cache: NoopCacheHooks{},
		http:  NoopHTTPHooks{},
	}
}

// Register installs h for every hook interface it implements and reports
// how many it matched.
func Register(h any) int {
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	n := 0
	if v, ok := h.(StoreHooks); ok {
		hooks.store, n = v, n+1
	}
	if v, ok := h.(FeedHooks); ok {
		hooks.feed, n = v, n+1
	}
	if v, ok := h.(CacheHooks); ok {
		hooks.cache, n = v, n+1
	}
	if v, ok := h.(HTTPHooks); ok {
		hooks.http, n = v, n+1
	}
	return n
}

// SetStoreHooks installs h as the store hooks. A nil h is ignored.
func SetStoreHooks(h StoreHooks) {
	if h != nil {
		hooks.mu.Lock()
		hooks.store = h
		hooks.mu.Unlock()
	}
}

// SetFeedHooks installs h as the feed hooks. A nil h is ignored.
func SetFeedHooks(h FeedHooks) {
	if h != nil {
		hooks.mu.Lock()
		hooks.feed = h
		hooks.mu.Unlock()
	}
}

// SetCacheHooks installs h as the cache hooks. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		hooks.mu.Lock()
		hooks.cache = h
		hooks.mu.Unlock()
	}
}

// SetHTTPHooks installs h as the HTTP hooks. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		hooks.mu.Lock()
		hooks.http = h
		hooks.mu.Unlock()
	}
}

// Store returns the installed store hooks.
func Store() StoreHooks {
	hooks.mu.RLock()
	defer hooks.mu.RUnlock()
	return hooks.store
}

// Feed returns the installed feed hooks.
func Feed() FeedHooks {
	hooks.mu.RLock()
	defer hooks.mu.RUnlock()
	return hooks.feed
}

// Cache returns the installed cache hooks.
func Cache() CacheHooks {
	hooks.mu.RLock()
	defer hooks.mu.RUnlock()
	return hooks.cache
}

// HTTP returns the installed HTTP hooks.
func HTTP() HTTPHooks {
	hooks.mu.RLock()
	defer hooks.mu.RUnlock()
	return hooks.http
}

// Reset puts the no-op hooks back. Tests use it in cleanups.
func Reset() {
	fresh := newRegistry()
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	hooks.store, hooks.feed, hooks.cache, hooks.http = fresh.store, fresh.feed, fresh.cache, fresh.http
}
