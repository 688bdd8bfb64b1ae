package layout

// grid tracks occupied cells. It has a fixed number of columns (the nominal
// side) and grows rows on demand once the nominal square is full.
type grid struct {
	side  int
	rows  [][]bool
	first int // row-major index of the first free cell
}

func newGrid(side int) *grid {
	g := &grid{side: side, rows: make([][]bool, side)}
	for i := range g.rows {
		g.rows[i] = make([]bool, side)
	}
	return g
}

func (g *grid) occupied(x, y int) bool {
	return y < len(g.rows) && g.rows[y][x]
}

// fits reports whether a w x h rectangle at (x, y) stays inside the nominal
// square and covers only free cells.
func (g *grid) fits(x, y, w, h int) bool {
	if x+w > g.side || y+h > g.side {
		return false
	}
	for dy := 0; dy < h; dy++ {
		row := g.rows[y+dy]
		for dx := 0; dx < w; dx++ {
			if row[x+dx] {
				return false
			}
		}
	}
	return true
}

func (g *grid) fill(x, y, w, h int) {
	for y+h > len(g.rows) {
		g.rows = append(g.rows, make([]bool, g.side))
	}
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			g.rows[y+dy][x+dx] = true
		}
	}
	for g.first < len(g.rows)*g.side && g.occupied(g.first%g.side, g.first/g.side) {
		g.first++
	}
}

// place finds a home for a w x h rectangle whose area may not exceed
// ceiling, shrinking it as needed, and marks it occupied. When the nominal
// square is full it falls back to a single overflow cell.
func (g *grid) place(w, h, ceiling int) (x, y, pw, ph int) {
	for _, size := range shrinkSequence(w, h) {
		pw, ph = size[0], size[1]
		if pw*ph > ceiling {
			continue
		}
		if x, y, ok := g.scan(pw, ph); ok {
			g.fill(x, y, pw, ph)
			return x, y, pw, ph
		}
	}

	// Nominal square exhausted: first free cell at or after the cursor,
	// which now lies in the overflow rows.
	x, y = g.first%g.side, g.first/g.side
	g.fill(x, y, 1, 1)
	return x, y, 1, 1
}

// scan returns the first row-major position inside the nominal square where
// a w x h rectangle fits.
func (g *grid) scan(w, h int) (int, int, bool) {
	total := g.side * g.side
	for i := g.first; i < total; i++ {
		x, y := i%g.side, i/g.side
		if g.fits(x, y, w, h) {
			return x, y, true
		}
	}
	return 0, 0, false
}
