// Package layout packs weighted entities into proportional rectangles on a
// zone-local grid.
//
// # Overview
//
// [Compute] maps a list of entities and a zone capacity to a [Result]: one
// [Placement] per entity plus the tight [Boundary] of everything placed.
// It is a pure function. Identical input always yields an identical Result,
// which is what lets the store treat recomputation as replace-in-full.
//
// # Sizing
//
// Entities are sorted by weight descending (ties by id ascending). Each one
// receives a target cell count proportional to its share of the total
// weight, scaled by the zone capacity and floored at one cell:
//
//	target = max(1, round(weight / total * capacity))
//
// The target becomes a square-ish footprint of side floor(sqrt(target)),
// widened by one column when the remainder target - side*side is odd. See
// [TargetCells] and [Footprint].
//
// # Packing
//
// The nominal grid is G x G with G = ceil(sqrt(capacity)). Rectangles are
// placed greedily at the first row-major position where they fit. When a
// rectangle does not fit, its larger side is halved until it does, down to
// a single cell. No rectangle is ever larger than the one placed before it,
// so a heavier entity never ends up with less area than a lighter one.
//
// When the nominal grid has no free cell left, further entities receive a
// single cell in overflow rows below the square. The boundary then spills
// past the nominal grid; this is graceful overflow, not an error. Width
// never exceeds the nominal side. [ComputeZone] turns the result for east
// and west zones so overflow always grows away from the central zone.
//
// # Boundary
//
// The [Boundary] is computed from the placed cells, not from the nominal
// grid, so a sparse zone yields a small bounding box.
package layout
