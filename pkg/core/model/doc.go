// Package model defines the records the territory core operates on.
//
// An [Entity] is a weighted item (a player holding a stake) that belongs to
// exactly one [Zone] (a continent). Zones are static configuration: each has
// a capacity that sizes its nominal packing grid, and at most one zone is
// flagged central. The central zone never has direct members; its occupants
// are derived by the store from the heaviest entity of every other zone.
//
// Non-central zones carry a compass [Direction] that the position resolver
// turns into an outward offset from the central zone:
//
//	zs, err := model.NewZones([]model.Zone{
//	    {ID: "vip", Capacity: 64, Central: true},
//	    {ID: "north", Capacity: 100, Direction: model.North},
//	})
//
// Entity ordering used throughout the module is weight descending with ties
// broken by id ascending; see [Heavier].
package model
