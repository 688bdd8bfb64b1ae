package store

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/territory/pkg/core/layout"
	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/core/position"
	"github.com/matzehuels/territory/pkg/errors"
	"github.com/matzehuels/territory/pkg/feed"
	"github.com/matzehuels/territory/pkg/observability"
)

// LayoutFunc computes the layout of one zone. The store calls it only for
// dirty zones. An error keeps the zone's previous result in place.
// Implementations return the zone-oriented result (see [layout.Orient]);
// positions assume it.
type LayoutFunc func(ctx context.Context, zone model.Zone, entities []model.Entity) (layout.Result, error)

// ComputeLayout is the default LayoutFunc: [layout.ComputeZone], which
// packs with the zone's capacity and orients overflow away from the centre.
func ComputeLayout(_ context.Context, zone model.Zone, entities []model.Entity) (layout.Result, error) {
	return layout.ComputeZone(zone, entities), nil
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for dropped events and layout failures.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSink sets where notification batches are delivered.
func WithSink(sink Sink) Option {
	return func(s *Store) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithLayoutFunc replaces the layout computation, e.g. with a cached one.
func WithLayoutFunc(fn LayoutFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.layout = fn
		}
	}
}

// WithResolver sets the position resolver.
func WithResolver(r *position.Resolver) Option {
	return func(s *Store) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithHooks sets instrumentation hooks. By default the hooks registered
// with [observability.SetStoreHooks] are used.
func WithHooks(h observability.StoreHooks) Option {
	return func(s *Store) { s.hooks = h }
}

// WithBatchIDs sets the generator for notification batch ids.
func WithBatchIDs(next func() string) Option {
	return func(s *Store) {
		if next != nil {
			s.batchID = next
		}
	}
}

// Store is the reconciling store. It is the only writer of canonical
// entity state and of the per-zone layout and position tables.
//
// Ingestion calls are serialized. Readers may call the getters
// concurrently; the results they receive are never modified afterwards.
type Store struct {
	zones    *model.Zones
	resolver *position.Resolver
	layout   LayoutFunc
	sink     Sink
	logger   *log.Logger
	hooks    observability.StoreHooks
	batchID  func() string

	ingestMu sync.Mutex

	mu         sync.RWMutex
	entities   map[string]model.Entity
	members    map[string]map[string]struct{}
	tops       *topTable
	placements map[string]*layout.Result
	positions  map[string]*position.Position
	last       []Notification
}

// New creates an empty store for the given zones.
func New(zones *model.Zones, opts ...Option) *Store {
	if zones == nil {
		zones, _ = model.NewZones(nil)
	}
	s := &Store{
		zones:      zones,
		layout:     ComputeLayout,
		sink:       nopSink{},
		logger:     log.New(io.Discard),
		batchID:    uuid.NewString,
		entities:   make(map[string]model.Entity),
		members:    make(map[string]map[string]struct{}),
		tops:       newTopTable(),
		placements: make(map[string]*layout.Result),
		positions:  make(map[string]*position.Position),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = position.NewResolver(zones)
	}
	return s
}

func (s *Store) obs() observability.StoreHooks {
	if s.hooks != nil {
		return s.hooks
	}
	return observability.Store()
}

// =============================================================================
// Seeding
// =============================================================================

// Seed replaces all state with entities and computes every layout and
// position. Invalid records are dropped and logged. It returns the number
// of records accepted. No notifications are emitted.
func (s *Store) Seed(ctx context.Context, entities []model.Entity) int {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.entities)
	clear(s.members)
	clear(s.placements)
	clear(s.positions)
	s.last = nil

	accepted := 0
	for _, e := range entities {
		if err := s.check(feed.InsertOf(e)); err != nil {
			s.drop(ctx, feed.InsertOf(e), err)
			continue
		}
		if prev, ok := s.entities[e.ID]; ok {
			delete(s.members[prev.ZoneID], e.ID)
		} else {
			accepted++
		}
		s.entities[e.ID] = e.Clone()
		s.addMember(e.ZoneID, e.ID)
	}
	s.tops.rebuild(s.zones.IDs(), s.scanTop)

	d := make(dirtySet)
	for _, id := range s.zones.IDs() {
		d[id] = struct{}{}
	}
	s.refresh(ctx, d)

	s.logger.Debug("seeded", "entities", accepted, "zones", len(s.placements))
	return accepted
}

// SeedFrom lists entities from l and seeds the store with them.
func (s *Store) SeedFrom(ctx context.Context, l feed.Lister) (int, error) {
	entities, err := l.ListEntities(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeNetwork, err, "list entities")
	}
	return s.Seed(ctx, entities), nil
}

// =============================================================================
// Ingestion
// =============================================================================

// Ingest applies events in order and returns one notification per applied
// event. Malformed events and events naming an unknown zone are dropped
// without touching state. Layouts are recomputed once per call for the
// zones the batch dirtied, then positions, and finally the batch goes to
// the sink. It must not be called from inside [Sink.Notify].
func (s *Store) Ingest(ctx context.Context, events ...feed.Event) []Notification {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	return s.ingest(ctx, events)
}

func (s *Store) ingest(ctx context.Context, events []feed.Event) []Notification {
	start := time.Now()
	batchID := s.batchID()
	batch := make([]Notification, 0, len(events))
	d := make(dirtySet)

	s.mu.Lock()
	for _, ev := range events {
		if err := s.check(ev); err != nil {
			s.drop(ctx, ev, err)
			continue
		}
		n := s.apply(ev, d)
		n.BatchID = batchID
		batch = append(batch, n)
		s.obs().OnNotification(ctx, string(n.Kind))
	}
	s.refresh(ctx, d)
	if len(batch) > 0 {
		s.last = slices.Clone(batch)
	}
	s.mu.Unlock()

	s.obs().OnIngest(ctx, len(events), len(d), time.Since(start))
	if len(batch) > 0 {
		s.sink.Notify(ctx, batch)
	}
	return batch
}

// check validates ev against the configured zones.
func (s *Store) check(ev feed.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.Type == feed.Delete {
		return nil
	}
	zone := ev.Record.ZoneID
	if s.zones.IsCentral(zone) {
		return errors.New(errors.ErrCodeUnknownZone, "zone %q is central; its members are derived", zone)
	}
	if _, ok := s.zones.Get(zone); !ok {
		return errors.New(errors.ErrCodeUnknownZone, "zone %q is not configured", zone)
	}
	return nil
}

func (s *Store) drop(ctx context.Context, ev feed.Event, err error) {
	s.logger.Warn("dropping event", "type", ev.Type, "entity", ev.Record.ID, "zone", ev.Record.ZoneID, "err", err)
	s.obs().OnDrop(ctx, string(errors.GetCode(err)))
}

// apply mutates canonical state for one valid event and marks dirty zones.
func (s *Store) apply(ev feed.Event, d dirtySet) Notification {
	id := ev.Record.ID

	var prev, next *model.Entity
	if cur, ok := s.entities[id]; ok {
		prev = &cur
	}
	if ev.Type != feed.Delete {
		rec := ev.Record.Clone()
		next = &rec
	}

	n := classify(ev, prev, next)
	switch n.Kind {
	case NoOp:
		return n
	case AttributeOnly:
		s.entities[id] = *next
		s.tops.touch(*next)
		return n
	}

	if prev != nil {
		delete(s.members[prev.ZoneID], id)
		d.add(prev.ZoneID)
	}
	if next != nil {
		s.entities[id] = *next
		s.addMember(next.ZoneID, id)
		d.add(next.ZoneID)
	} else {
		delete(s.entities, id)
	}

	if s.tops.apply(prev, next, s.scanTop) {
		d.add(s.zones.CentralID())
	}
	return n
}

func (s *Store) addMember(zoneID, id string) {
	m, ok := s.members[zoneID]
	if !ok {
		m = make(map[string]struct{})
		s.members[zoneID] = m
	}
	m[id] = struct{}{}
}

func (s *Store) scanTop(zoneID string) (model.Entity, bool) {
	var top model.Entity
	found := false
	for id := range s.members[zoneID] {
		e := s.entities[id]
		if !found || model.Heavier(e, top) {
			top, found = e, true
		}
	}
	return top, found
}

func (s *Store) memberList(zoneID string) []model.Entity {
	out := make([]model.Entity, 0, len(s.members[zoneID]))
	for id := range s.members[zoneID] {
		out = append(out, s.entities[id])
	}
	model.SortByWeight(out)
	return out
}

// =============================================================================
// Recomputation
// =============================================================================

type dirtySet map[string]struct{}

func (d dirtySet) add(zoneID string) {
	if zoneID != "" {
		d[zoneID] = struct{}{}
	}
}

// refresh recomputes layouts for the dirty zones and then the positions
// that depend on them. Unchanged layouts and positions keep their previous
// pointers so readers can compare by reference.
func (s *Store) refresh(ctx context.Context, d dirtySet) {
	if len(d) == 0 {
		return
	}

	changed := make(map[string]bool)
	centralMoved := false

	for _, z := range s.zones.All() {
		if _, dirty := d[z.ID]; !dirty {
			continue
		}

		var entities []model.Entity
		if z.Central {
			entities = s.tops.values()
		} else {
			entities = s.memberList(z.ID)
		}

		old := s.placements[z.ID]
		if len(entities) == 0 {
			if old != nil {
				delete(s.placements, z.ID)
				delete(s.positions, z.ID)
				centralMoved = centralMoved || z.Central
			}
			continue
		}

		start := time.Now()
		res, err := s.layout(ctx, z, entities)
		s.obs().OnLayout(ctx, z.ID, res.Len(), time.Since(start), err)
		if err != nil {
			s.logger.Error("layout failed, serving previous result", "zone", z.ID, "err", err)
			continue
		}
		if old != nil && old.Equal(res) {
			continue
		}

		s.placements[z.ID] = &res
		changed[z.ID] = true
		if z.Central && (old == nil || old.Boundary != res.Boundary) {
			centralMoved = true
		}
	}

	resolved := 0
	for _, z := range s.zones.All() {
		if !centralMoved && !changed[z.ID] {
			continue
		}
		if s.resolve(z) {
			resolved++
		}
	}
	s.obs().OnPositions(ctx, resolved)
}

// resolve recomputes one zone's position. It reports whether the zone has
// a layout to position.
func (s *Store) resolve(z model.Zone) bool {
	res := s.placements[z.ID]
	if res == nil {
		delete(s.positions, z.ID)
		return false
	}
	central := s.placements[s.zones.CentralID()]
	pos := s.resolver.Resolve(z, *res, central)
	if old := s.positions[z.ID]; old != nil && *old == pos {
		return true
	}
	s.positions[z.ID] = &pos
	return true
}

// =============================================================================
// Reads
// =============================================================================

// Zones returns the zone configuration.
func (s *Store) Zones() *model.Zones { return s.zones }

// Placement returns the current layout of a zone. It is absent until the
// zone has at least one occupant.
func (s *Store) Placement(zoneID string) (*layout.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.placements[zoneID]
	return r, ok
}

// Position returns the current world position of a zone. It is absent
// whenever the placement is.
func (s *Store) Position(zoneID string) (*position.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[zoneID]
	return p, ok
}

// LastNotifications returns the batch of the most recent ingestion call
// that applied at least one event.
func (s *Store) LastNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.last)
}

// Entity returns the canonical record for id.
func (s *Store) Entity(id string) (model.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	return e.Clone(), ok
}

// Len returns the number of canonical entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Top returns the heaviest entity of a non-central zone.
func (s *Store) Top(zoneID string) (model.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tops.get(zoneID)
	return e.Clone(), ok
}
