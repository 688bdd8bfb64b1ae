package layout

import (
	"testing"

	"github.com/matzehuels/territory/pkg/core/model"
)

func TestTranspose(t *testing.T) {
	r := Compute(entities(700, 300), 100)
	tr := r.Transpose()

	if tr.Boundary.Width != r.Boundary.Height || tr.Boundary.Height != r.Boundary.Width {
		t.Errorf("Boundary = %+v, want the axes of %+v swapped", tr.Boundary, r.Boundary)
	}
	for i, p := range r.Placements {
		q := tr.Placements[i]
		if q.X != p.Y || q.Y != p.X || q.Width != p.Height || q.Height != p.Width || q.EntityID != p.EntityID {
			t.Errorf("placement %d = %+v, want %+v transposed", i, q, p)
		}
	}
	assertNoOverlap(t, tr)
	assertTightBoundary(t, tr)

	if !tr.Transpose().Equal(r) {
		t.Error("Transpose() twice should give back the original")
	}
	if !(Result{}).Transpose().Empty() {
		t.Error("Transpose() of an empty result should stay empty")
	}
}

func TestComputeZoneOrientsOverflow(t *testing.T) {
	in := make([]float64, 12)
	for i := range in {
		in[i] = 1
	}

	tests := []struct {
		dir  model.Direction
		w, h int
	}{
		{model.North, 2, 6},
		{model.South, 2, 6},
		{model.NorthEast, 2, 6},
		{model.East, 6, 2},
		{model.West, 6, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			z := model.Zone{ID: "z", Capacity: 4, Direction: tt.dir}
			r := ComputeZone(z, entities(in...))
			if r.Boundary.Width != tt.w || r.Boundary.Height != tt.h {
				t.Errorf("Boundary = %dx%d, want %dx%d", r.Boundary.Width, r.Boundary.Height, tt.w, tt.h)
			}
			assertCoverage(t, entities(in...), r)
			assertNoOverlap(t, r)
			assertTightBoundary(t, r)
		})
	}

	central := model.Zone{ID: "vip", Capacity: 4, Central: true}
	if r := ComputeZone(central, entities(in...)); r.Boundary.Width != 2 {
		t.Errorf("central zone should not be reoriented, got %+v", r.Boundary)
	}
}
