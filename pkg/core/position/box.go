package position

import "github.com/matzehuels/territory/pkg/core/layout"

// Box is an axis-aligned world-space rectangle.
type Box struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

// BoxOf translates a zone's boundary so it is centred on pos.
func BoxOf(pos Position, r layout.Result) Box {
	hw, hh := r.Boundary.HalfExtents()
	return Box{
		MinX: pos.X - hw,
		MaxX: pos.X + hw,
		MinY: pos.Y - hh,
		MaxY: pos.Y + hh,
	}
}

// Width returns MaxX - MinX.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns MaxY - MinY.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Empty reports whether the box has no area.
func (b Box) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Overlaps reports whether a and b share interior area. Touching edges and
// empty boxes never overlap.
func Overlaps(a, b Box) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.MinX < b.MaxX && b.MinX < a.MaxX && a.MinY < b.MaxY && b.MinY < a.MaxY
}
