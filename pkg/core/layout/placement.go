package layout

// Placement is the rectangle assigned to one entity, in zone-local grid
// units. X grows to the right and Y grows downward from the top-left cell.
type Placement struct {
	EntityID string `json:"entityId"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Right returns the exclusive right edge.
func (p Placement) Right() int { return p.X + p.Width }

// Bottom returns the exclusive bottom edge.
func (p Placement) Bottom() int { return p.Y + p.Height }

// Area returns the number of cells covered.
func (p Placement) Area() int { return p.Width * p.Height }

// CenterX returns the horizontal center point of the placement.
func (p Placement) CenterX() float64 { return float64(p.X) + float64(p.Width)/2 }

// CenterY returns the vertical center point of the placement.
func (p Placement) CenterY() float64 { return float64(p.Y) + float64(p.Height)/2 }

// Overlaps reports whether p and o share at least one cell.
func (p Placement) Overlaps(o Placement) bool {
	return p.X < o.Right() && o.X < p.Right() && p.Y < o.Bottom() && o.Y < p.Bottom()
}

// Boundary is the tight bounding box of a set of placements.
// MaxX and MaxY are exclusive edges, so Width = MaxX - MinX.
type Boundary struct {
	MinX   int `json:"minX"`
	MaxX   int `json:"maxX"`
	MinY   int `json:"minY"`
	MaxY   int `json:"maxY"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether p lies entirely inside b.
func (b Boundary) Contains(p Placement) bool {
	return p.X >= b.MinX && p.Right() <= b.MaxX && p.Y >= b.MinY && p.Bottom() <= b.MaxY
}

// HalfExtents returns half the width and height.
func (b Boundary) HalfExtents() (hw, hh float64) {
	return float64(b.Width) / 2, float64(b.Height) / 2
}

// boundaryOf computes the tight min/max over placements.
func boundaryOf(placements []Placement) Boundary {
	if len(placements) == 0 {
		return Boundary{}
	}
	b := Boundary{
		MinX: placements[0].X,
		MaxX: placements[0].Right(),
		MinY: placements[0].Y,
		MaxY: placements[0].Bottom(),
	}
	for _, p := range placements[1:] {
		b.MinX = min(b.MinX, p.X)
		b.MaxX = max(b.MaxX, p.Right())
		b.MinY = min(b.MinY, p.Y)
		b.MaxY = max(b.MaxY, p.Bottom())
	}
	b.Width = b.MaxX - b.MinX
	b.Height = b.MaxY - b.MinY
	return b
}

// Result is the packed layout of one zone. A Result is never modified after
// [Compute] returns it.
type Result struct {
	Placements []Placement `json:"placements"`
	Boundary   Boundary    `json:"boundary"`
}

// Len returns the number of placements.
func (r Result) Len() int { return len(r.Placements) }

// Empty reports whether nothing was placed.
func (r Result) Empty() bool { return len(r.Placements) == 0 }

// Lookup returns the placement of the given entity.
func (r Result) Lookup(entityID string) (Placement, bool) {
	for _, p := range r.Placements {
		if p.EntityID == entityID {
			return p, true
		}
	}
	return Placement{}, false
}

// Area returns the total number of occupied cells.
func (r Result) Area() int {
	var n int
	for _, p := range r.Placements {
		n += p.Area()
	}
	return n
}

// Equal reports whether r and o describe the same layout.
func (r Result) Equal(o Result) bool {
	if r.Boundary != o.Boundary || len(r.Placements) != len(o.Placements) {
		return false
	}
	for i := range r.Placements {
		if r.Placements[i] != o.Placements[i] {
			return false
		}
	}
	return true
}
