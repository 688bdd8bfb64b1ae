package store

import (
	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/feed"
)

// Kind classifies what an event did to the canonical record.
type Kind string

const (
	NewEntity     Kind = "NEW_ENTITY"
	WeightChange  Kind = "WEIGHT_CHANGE"
	ZoneChange    Kind = "ZONE_CHANGE"
	EntityRemoved Kind = "ENTITY_REMOVED"
	AttributeOnly Kind = "ATTRIBUTE_ONLY"
	NoOp          Kind = "NO_OP"
)

// AffectsMembership reports whether k can change a zone's members or their
// weights, and therefore which entity is on top.
func (k Kind) AffectsMembership() bool {
	switch k {
	case NewEntity, WeightChange, ZoneChange, EntityRemoved:
		return true
	}
	return false
}

// Visible reports whether k is worth surfacing to a user.
func (k Kind) Visible() bool {
	return k != NoOp && k != AttributeOnly
}

// Notification describes one processed event.
type Notification struct {
	EntityID string `json:"entityId"`
	Kind     Kind   `json:"kind"`

	// PreviousWeight is set for WEIGHT_CHANGE and ENTITY_REMOVED.
	PreviousWeight *float64 `json:"previousWeight,omitempty"`

	// ZoneID is the entity's zone after the event, or the zone it left for
	// ENTITY_REMOVED. PreviousZoneID is set when the zone changed.
	ZoneID         string `json:"zoneId,omitempty"`
	PreviousZoneID string `json:"previousZoneId,omitempty"`

	// BatchID is shared by every notification of one ingestion call.
	BatchID string `json:"batchId"`
}

// Visible returns the notifications whose kind is [Kind.Visible].
func Visible(batch []Notification) []Notification {
	var out []Notification
	for _, n := range batch {
		if n.Kind.Visible() {
			out = append(out, n)
		}
	}
	return out
}

// Batch is the message form of one notification batch, as published to
// external subscribers.
type Batch struct {
	BatchID       string         `json:"batchId"`
	Notifications []Notification `json:"notifications"`
}

// NewBatch wraps ns. The batch id is taken from the first notification.
func NewBatch(ns []Notification) Batch {
	b := Batch{Notifications: ns}
	if len(ns) > 0 {
		b.BatchID = ns[0].BatchID
	}
	if b.Notifications == nil {
		b.Notifications = []Notification{}
	}
	return b
}

// classify compares the record before an event with the record after it.
// prev is nil when the id was unknown; next is nil when the event removed
// the record. Weight is compared before zone, so an event moving an entity
// and changing its stake reports WEIGHT_CHANGE with PreviousZoneID set.
func classify(ev feed.Event, prev, next *model.Entity) Notification {
	n := Notification{EntityID: ev.Record.ID}
	switch {
	case prev == nil && next == nil:
		n.Kind = NoOp
	case prev == nil:
		n.Kind = NewEntity
	case next == nil:
		n.Kind = EntityRemoved
		n.PreviousWeight = weightPtr(prev.Weight)
	case prev.Weight != next.Weight:
		n.Kind = WeightChange
		n.PreviousWeight = weightPtr(prev.Weight)
	case prev.ZoneID != next.ZoneID:
		n.Kind = ZoneChange
	case !prev.Equal(*next):
		n.Kind = AttributeOnly
	default:
		n.Kind = NoOp
	}

	switch {
	case next != nil:
		n.ZoneID = next.ZoneID
		if prev != nil && prev.ZoneID != next.ZoneID {
			n.PreviousZoneID = prev.ZoneID
		}
	case prev != nil:
		n.ZoneID = prev.ZoneID
	}
	return n
}

func weightPtr(w float64) *float64 { return &w }
