package store

import "github.com/matzehuels/territory/pkg/core/model"

// topTable holds the heaviest entity of every non-central zone. Its values
// are the central zone's occupants.
type topTable struct {
	tops map[string]model.Entity
}

func newTopTable() *topTable {
	return &topTable{tops: make(map[string]model.Entity)}
}

// scanFunc returns the heaviest current member of a zone.
type scanFunc func(zoneID string) (model.Entity, bool)

// apply folds one membership change into the table. The canonical state
// must already reflect next. A zone is rescanned only when its top entity
// left it or got lighter; every other case compares against the current
// top. It reports whether any zone's top id or top weight changed.
func (t *topTable) apply(prev, next *model.Entity, scan scanFunc) bool {
	changed := false

	if prev != nil && (next == nil || next.ZoneID != prev.ZoneID) {
		if top, ok := t.tops[prev.ZoneID]; ok && top.ID == prev.ID {
			changed = t.rescan(prev.ZoneID, scan)
		}
	}

	if next != nil {
		zone := next.ZoneID
		top, ok := t.tops[zone]
		switch {
		case !ok:
			t.tops[zone] = *next
			changed = true
		case top.ID == next.ID && next.Weight >= top.Weight:
			if next.Weight != top.Weight {
				changed = true
			}
			t.tops[zone] = *next
		case top.ID == next.ID:
			changed = t.rescan(zone, scan) || changed
		case model.Heavier(*next, top):
			t.tops[zone] = *next
			changed = true
		}
	}
	return changed
}

// touch replaces the stored copy of e when e is a zone's top, without
// reporting a change. Used for payload-only updates.
func (t *topTable) touch(e model.Entity) {
	if top, ok := t.tops[e.ZoneID]; ok && top.ID == e.ID {
		t.tops[e.ZoneID] = e
	}
}

func (t *topTable) rescan(zoneID string, scan scanFunc) bool {
	old, had := t.tops[zoneID]
	top, ok := scan(zoneID)
	if !ok {
		delete(t.tops, zoneID)
		return had
	}
	t.tops[zoneID] = top
	return !had || old.ID != top.ID || old.Weight != top.Weight
}

// rebuild recomputes every zone from scratch.
func (t *topTable) rebuild(zoneIDs []string, scan scanFunc) {
	clear(t.tops)
	for _, id := range zoneIDs {
		if top, ok := scan(id); ok {
			t.tops[id] = top
		}
	}
}

func (t *topTable) get(zoneID string) (model.Entity, bool) {
	e, ok := t.tops[zoneID]
	return e, ok
}

// values returns the top entities sorted heaviest first.
func (t *topTable) values() []model.Entity {
	out := make([]model.Entity, 0, len(t.tops))
	for _, e := range t.tops {
		out = append(out, e)
	}
	model.SortByWeight(out)
	return out
}
