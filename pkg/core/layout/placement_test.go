package layout

import "testing"

func TestPlacementEdges(t *testing.T) {
	tests := []struct {
		name       string
		p          Placement
		wantRight  int
		wantBottom int
		wantArea   int
	}{
		{"unit cell", Placement{X: 0, Y: 0, Width: 1, Height: 1}, 1, 1, 1},
		{"offset", Placement{X: 3, Y: 2, Width: 4, Height: 5}, 7, 7, 20},
		{"wide", Placement{X: 0, Y: 9, Width: 6, Height: 5}, 6, 14, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Right(); got != tt.wantRight {
				t.Errorf("Right() = %v, want %v", got, tt.wantRight)
			}
			if got := tt.p.Bottom(); got != tt.wantBottom {
				t.Errorf("Bottom() = %v, want %v", got, tt.wantBottom)
			}
			if got := tt.p.Area(); got != tt.wantArea {
				t.Errorf("Area() = %v, want %v", got, tt.wantArea)
			}
		})
	}
}

func TestPlacementCenter(t *testing.T) {
	p := Placement{X: 10, Y: 20, Width: 50, Height: 50}
	if p.CenterX() != 35 {
		t.Errorf("CenterX() = %v, want 35", p.CenterX())
	}
	if p.CenterY() != 45 {
		t.Errorf("CenterY() = %v, want 45", p.CenterY())
	}
}

func TestPlacementOverlaps(t *testing.T) {
	a := Placement{X: 0, Y: 0, Width: 4, Height: 4}

	tests := []struct {
		name string
		b    Placement
		want bool
	}{
		{"same", a, true},
		{"inside", Placement{X: 1, Y: 1, Width: 1, Height: 1}, true},
		{"touching right edge", Placement{X: 4, Y: 0, Width: 2, Height: 2}, false},
		{"touching bottom edge", Placement{X: 0, Y: 4, Width: 2, Height: 2}, false},
		{"corner overlap", Placement{X: 3, Y: 3, Width: 2, Height: 2}, true},
		{"far away", Placement{X: 10, Y: 10, Width: 1, Height: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(a); got != tt.want {
				t.Errorf("Overlaps() not symmetric")
			}
		})
	}
}

func TestBoundaryOf(t *testing.T) {
	b := boundaryOf([]Placement{
		{X: 0, Y: 0, Width: 8, Height: 8},
		{X: 8, Y: 0, Width: 2, Height: 3},
		{X: 0, Y: 8, Width: 3, Height: 2},
	})

	want := Boundary{MinX: 0, MaxX: 10, MinY: 0, MaxY: 10, Width: 10, Height: 10}
	if b != want {
		t.Errorf("boundaryOf() = %+v, want %+v", b, want)
	}

	if got := boundaryOf(nil); got != (Boundary{}) {
		t.Errorf("boundaryOf(nil) = %+v, want zero", got)
	}
}

func TestBoundaryContains(t *testing.T) {
	b := Boundary{MinX: 0, MaxX: 5, MinY: 0, MaxY: 5, Width: 5, Height: 5}
	if !b.Contains(Placement{X: 0, Y: 0, Width: 5, Height: 5}) {
		t.Error("Contains() should accept a placement on the edges")
	}
	if b.Contains(Placement{X: 4, Y: 0, Width: 2, Height: 1}) {
		t.Error("Contains() should reject a placement crossing MaxX")
	}
}

func TestResultLookupAndEqual(t *testing.T) {
	r := Result{
		Placements: []Placement{{EntityID: "a", Width: 2, Height: 2}, {EntityID: "b", X: 2, Width: 1, Height: 1}},
		Boundary:   Boundary{MaxX: 3, MaxY: 2, Width: 3, Height: 2},
	}

	if p, ok := r.Lookup("b"); !ok || p.X != 2 {
		t.Errorf("Lookup(b) = %+v, %v", p, ok)
	}
	if _, ok := r.Lookup("zzz"); ok {
		t.Error("Lookup(zzz) should miss")
	}
	if r.Area() != 5 {
		t.Errorf("Area() = %d, want 5", r.Area())
	}

	clone := Result{Placements: append([]Placement(nil), r.Placements...), Boundary: r.Boundary}
	if !r.Equal(clone) {
		t.Error("Equal() should hold for a copy")
	}
	clone.Placements[1].X = 3
	if r.Equal(clone) {
		t.Error("Equal() should detect a moved placement")
	}
}
