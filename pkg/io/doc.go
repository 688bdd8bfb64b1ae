// Package io reads and writes the JSON files the CLI works with: entity
// fixtures and store snapshots.
//
// # Entity fixtures
//
// A fixture is either a bare array of entity records or an object holding
// one under "entities":
//
//	{
//	  "entities": [
//	    {"id": "a", "zoneId": "north", "weight": 70, "name": "Alpha"},
//	    {"id": "b", "zoneId": "north", "weight": 30}
//	  ]
//	}
//
// Record fields follow [model.Entity]: id and weight are required, zoneId
// may be omitted for single-zone runs, and "attributes" carries any
// payload. Ids must be unique within a fixture.
//
// # Snapshots
//
// [WriteSnapshot] serializes a [store.Snapshot]: every zone with its
// placement, position and top entity, plus the canonical entity list and
// the last notification batch. [ReadSnapshot] loads one back for the
// viewer. Snapshots are output only; they are not used to seed a store.
//
// [store.Snapshot]: github.com/matzehuels/territory/pkg/store.Snapshot
// [model.Entity]: github.com/matzehuels/territory/pkg/core/model.Entity
package io
