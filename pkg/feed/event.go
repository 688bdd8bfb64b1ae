package feed

import (
	"context"
	"encoding/json"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/errors"
)

// EventType is the operation a change-feed event carries.
type EventType string

const (
	Insert EventType = "insert"
	Update EventType = "update"
	Delete EventType = "delete"
)

// Valid reports whether t is one of the three known event types.
func (t EventType) Valid() bool {
	switch t {
	case Insert, Update, Delete:
		return true
	}
	return false
}

// Event is one change delivered by a feed. Record is the full row for
// inserts and updates; deletes only need Record.ID.
type Event struct {
	Type   EventType
	Record model.Entity
}

// InsertOf returns an insert event for e.
func InsertOf(e model.Entity) Event { return Event{Type: Insert, Record: e} }

// UpdateOf returns an update event for e.
func UpdateOf(e model.Entity) Event { return Event{Type: Update, Record: e} }

// DeleteOf returns a delete event for the entity with the given id.
func DeleteOf(id string) Event { return Event{Type: Delete, Record: model.Entity{ID: id}} }

// Validate checks the fields the store needs before touching state.
// It does not know about zones; the store checks zone membership.
func (e Event) Validate() error {
	if !e.Type.Valid() {
		return errors.New(errors.ErrCodeMalformedEvent, "unknown event type %q", e.Type)
	}
	if e.Type == Delete {
		return errors.ValidateID("entity", e.Record.ID)
	}
	return e.Record.Validate()
}

// MarshalJSON encodes e in the wire format accepted by [Decode].
func (e Event) MarshalJSON() ([]byte, error) {
	return Encode(e)
}

// UnmarshalJSON decodes and validates the wire format; see [Decode].
func (e *Event) UnmarshalJSON(data []byte) error {
	ev, err := Decode(data)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}

// Encode renders e in wire form:
//
//	{"eventType": "update", "record": {"id": "p1", "zoneId": "north", "weight": 12}}
//
// Attributes are flattened into the record next to the known fields.
func Encode(e Event) ([]byte, error) {
	record := map[string]any{fieldID: e.Record.ID}
	if e.Type != Delete {
		record = Record(e.Record)
	}
	return json.Marshal(wireEvent{EventType: string(e.Type), Record: record})
}

// Handler receives events from a [Subscriber], one at a time and in order.
type Handler func(ctx context.Context, ev Event)

// Unsubscribe tears a subscription down. It blocks until the handler has
// returned for the last time and is safe to call more than once.
type Unsubscribe func()

// Lister is the query side of a data source. Both calls return a full
// snapshot and are used to seed or reload canonical state.
type Lister interface {
	ListEntities(ctx context.Context) ([]model.Entity, error)
	ListZones(ctx context.Context) ([]model.Zone, error)
}

// Subscriber is the streaming side of a data source.
//
// Subscribe starts delivering events to h and returns once the subscription
// is live. Delivery stops when the returned Unsubscribe is called or ctx is
// done. A subscription does not replay history; callers that need a fresh
// view after resubscribing reload from a [Lister] first.
type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) (Unsubscribe, error)
}

// Source is a data source offering both sides.
type Source interface {
	Lister
	Subscriber
}
