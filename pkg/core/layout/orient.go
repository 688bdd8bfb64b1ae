package layout

import "github.com/matzehuels/territory/pkg/core/model"

// ComputeZone packs entities into zone and orients the result so that
// overflow grows away from the central zone. See [Orient].
func ComputeZone(zone model.Zone, entities []model.Entity) Result {
	return Orient(Compute(entities, zone.Capacity), zone.Direction)
}

// Orient turns a Result produced by [Compute] so that its unbounded axis
// points along d.
//
// Compute keeps the width within the nominal side and grows overflow rows
// downward, which already points outward for north and south zones and for
// the diagonals. East and west zones are transposed: rows become columns,
// so their height stays within the nominal side and overflow adds columns
// pointing away from the centre.
func Orient(r Result, d model.Direction) Result {
	if !d.Horizontal() {
		return r
	}
	return r.Transpose()
}

// Transpose swaps the axes of every placement and of the boundary.
func (r Result) Transpose() Result {
	if r.Empty() {
		return r
	}
	out := Result{Placements: make([]Placement, len(r.Placements))}
	for i, p := range r.Placements {
		out.Placements[i] = Placement{
			EntityID: p.EntityID,
			X:        p.Y,
			Y:        p.X,
			Width:    p.Height,
			Height:   p.Width,
		}
	}
	b := r.Boundary
	out.Boundary = Boundary{
		MinX:   b.MinY,
		MaxX:   b.MaxY,
		MinY:   b.MinX,
		MaxY:   b.MaxX,
		Width:  b.Height,
		Height: b.Width,
	}
	return out
}
