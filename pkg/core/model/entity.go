package model

import (
	"maps"
	"reflect"
	"sort"

	"github.com/matzehuels/territory/pkg/errors"
)

// Entity is a weighted item packed into a zone.
// ID is immutable; ZoneID and Weight change over the entity's life.
type Entity struct {
	ID          string         `json:"id"`
	ZoneID      string         `json:"zoneId"`
	Weight      float64        `json:"weight"`
	Name        string         `json:"name,omitempty"`
	ImageStatus string         `json:"imageStatus,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Validate checks the fields required for packing.
func (e Entity) Validate() error {
	if err := errors.ValidateID("entity", e.ID); err != nil {
		return err
	}
	if e.ZoneID == "" {
		return errors.New(errors.ErrCodeMalformedEvent, "entity %q has no zone", e.ID)
	}
	return errors.ValidateWeight(e.Weight)
}

// Equal reports whether every field of e and o matches.
// A nil and an empty Attributes map are considered equal.
func (e Entity) Equal(o Entity) bool {
	if !e.SamePlacementInputs(o) || e.ID != o.ID || e.Name != o.Name || e.ImageStatus != o.ImageStatus {
		return false
	}
	if len(e.Attributes) == 0 && len(o.Attributes) == 0 {
		return true
	}
	return reflect.DeepEqual(e.Attributes, o.Attributes)
}

// SamePlacementInputs reports whether e and o agree on the fields the
// layout depends on.
func (e Entity) SamePlacementInputs(o Entity) bool {
	return e.ZoneID == o.ZoneID && e.Weight == o.Weight
}

// Clone returns a copy whose Attributes map is not shared with e.
func (e Entity) Clone() Entity {
	if e.Attributes != nil {
		e.Attributes = maps.Clone(e.Attributes)
	}
	return e
}

// Heavier reports whether a sorts before b: weight descending, then id
// ascending.
func Heavier(a, b Entity) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	return a.ID < b.ID
}

// SortByWeight sorts entities in place using [Heavier].
func SortByWeight(entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		return Heavier(entities[i], entities[j])
	})
}

// TotalWeight sums the weights of entities.
func TotalWeight(entities []Entity) float64 {
	var total float64
	for _, e := range entities {
		total += e.Weight
	}
	return total
}
