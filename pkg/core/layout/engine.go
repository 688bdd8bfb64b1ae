package layout

import (
	"math"

	"github.com/matzehuels/territory/pkg/core/model"
)

// Compute packs entities into a zone of the given capacity.
//
// An empty entity list, or a non-positive capacity, yields an empty Result
// with a zero Boundary. Entity counts above the capacity are accepted: every
// entity still receives at least one cell.
func Compute(entities []model.Entity, capacity int) Result {
	if capacity <= 0 || len(entities) == 0 {
		return Result{}
	}

	sorted := make([]model.Entity, len(entities))
	copy(sorted, entities)
	model.SortByWeight(sorted)

	total := model.TotalWeight(sorted)
	g := newGrid(model.NominalSide(capacity))

	placements := make([]Placement, 0, len(sorted))
	ceiling := math.MaxInt
	for _, e := range sorted {
		w, h := Footprint(TargetCells(e.Weight, total, capacity))
		x, y, w, h := g.place(w, h, ceiling)
		ceiling = w * h
		placements = append(placements, Placement{
			EntityID: e.ID,
			X:        x,
			Y:        y,
			Width:    w,
			Height:   h,
		})
	}

	return Result{
		Placements: placements,
		Boundary:   boundaryOf(placements),
	}
}

// TargetCells returns the number of cells an entity of the given weight
// should cover: round(weight / total * capacity), floored at 1. When total
// is zero every entity gets a single cell.
func TargetCells(weight, total float64, capacity int) int {
	if total <= 0 || capacity <= 0 {
		return 1
	}
	return max(1, int(math.Round(weight/total*float64(capacity))))
}

// Footprint turns a target cell count into a width x height rectangle of
// side floor(sqrt(target)). When the cells left over past the square are
// odd in number the rectangle gains a column, so footprints lean wider than
// tall and the zone's bounding box stays close to square.
func Footprint(target int) (width, height int) {
	if target <= 1 {
		return 1, 1
	}
	side := isqrt(target)
	if (target-side*side)%2 == 1 {
		return side + 1, side
	}
	return side, side
}

// shrinkSequence lists the sizes tried for a w x h rectangle, from the ideal
// size down to 1x1. Each step halves the larger side; ties halve the height.
func shrinkSequence(w, h int) [][2]int {
	seq := [][2]int{{w, h}}
	for w > 1 || h > 1 {
		if w > h {
			w = (w + 1) / 2
		} else {
			h = (h + 1) / 2
		}
		seq = append(seq, [2]int{w, h})
	}
	return seq
}

// isqrt returns floor(sqrt(n)) for n >= 0.
func isqrt(n int) int {
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
