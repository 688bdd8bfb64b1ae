package store

import (
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/territory/pkg/core/layout"
	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/core/position"
)

// Snapshot is a consistent, serializable copy of the store's state.
type Snapshot struct {
	TakenAt       time.Time      `json:"takenAt"`
	Zones         []ZoneState    `json:"zones"`
	Entities      []model.Entity `json:"entities"`
	Notifications []Notification `json:"notifications,omitempty"`
}

// ZoneState is one zone within a [Snapshot].
type ZoneState struct {
	Zone      model.Zone         `json:"zone"`
	Members   int                `json:"members"`
	Top       *model.Entity      `json:"top,omitempty"`
	Placement *layout.Result     `json:"placement,omitempty"`
	Position  *position.Position `json:"position,omitempty"`
}

// Zone returns the state of the zone with the given id.
func (s Snapshot) Zone(id string) (ZoneState, bool) {
	for _, z := range s.Zones {
		if z.Zone.ID == id {
			return z, true
		}
	}
	return ZoneState{}, false
}

// Snapshot captures the current state. Zones appear in configuration order
// and entities sorted by id.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		TakenAt:       time.Now().UTC(),
		Zones:         make([]ZoneState, 0, s.zones.Len()),
		Entities:      make([]model.Entity, 0, len(s.entities)),
		Notifications: slices.Clone(s.last),
	}

	for _, z := range s.zones.All() {
		zs := ZoneState{
			Zone:      z,
			Members:   len(s.members[z.ID]),
			Placement: s.placements[z.ID],
			Position:  s.positions[z.ID],
		}
		if z.Central {
			zs.Members = len(s.tops.tops)
		}
		if top, ok := s.tops.get(z.ID); ok {
			top = top.Clone()
			zs.Top = &top
		}
		snap.Zones = append(snap.Zones, zs)
	}

	for _, e := range s.entities {
		snap.Entities = append(snap.Entities, e.Clone())
	}
	slices.SortFunc(snap.Entities, func(a, b model.Entity) int { return strings.Compare(a.ID, b.ID) })
	return snap
}
