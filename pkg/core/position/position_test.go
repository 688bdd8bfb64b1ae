package position

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/matzehuels/territory/pkg/core/layout"
	"github.com/matzehuels/territory/pkg/core/model"
)

var compass = []model.Direction{
	model.North, model.NorthEast, model.East, model.SouthEast,
	model.South, model.SouthWest, model.West, model.NorthWest,
}

func mustZones(t *testing.T, zs ...model.Zone) *model.Zones {
	t.Helper()
	idx, err := model.NewZones(zs)
	if err != nil {
		t.Fatalf("NewZones() error: %v", err)
	}
	return idx
}

func sized(w, h int) layout.Result {
	p := layout.Placement{EntityID: "x", Width: w, Height: h}
	return layout.Result{
		Placements: []layout.Placement{p},
		Boundary:   layout.Boundary{MaxX: w, MaxY: h, Width: w, Height: h},
	}
}

func TestResolveCentralIsOrigin(t *testing.T) {
	zones := mustZones(t,
		model.Zone{ID: "vip", Capacity: 16, Central: true},
		model.Zone{ID: "n", Capacity: 100, Direction: model.North},
	)
	r := NewResolver(zones)
	vip, _ := zones.Get("vip")

	tests := []struct {
		name    string
		own     layout.Result
		central *layout.Result
	}{
		{"empty", layout.Result{}, nil},
		{"occupied", sized(4, 4), nil},
		{"with central layout", sized(3, 2), &layout.Result{Boundary: layout.Boundary{Width: 40, Height: 40}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(vip, tt.own, tt.central); got != Origin {
				t.Errorf("Resolve(central) = %+v, want origin", got)
			}
		})
	}
}

func TestResolveDirections(t *testing.T) {
	zones := mustZones(t,
		model.Zone{ID: "vip", Capacity: 16, Central: true},
		model.Zone{ID: "n", Capacity: 36, Direction: model.North},
		model.Zone{ID: "se", Capacity: 36, Direction: model.SouthEast, Elevation: 2.5},
		model.Zone{ID: "w", Capacity: 36, Direction: model.West},
	)
	r := NewResolver(zones)
	central := sized(4, 2)

	// lane = 6/2 = 3, gap = 1, central half-extents 2 x 1, own 2 x 2.
	tests := []struct {
		id   string
		want Position
	}{
		{"n", Position{X: 0, Y: 1 + 1 + 3 + 2}},
		{"se", Position{X: 2 + 1 + 3 + 2, Y: -(1 + 1 + 3 + 2), Z: 2.5}},
		{"w", Position{X: -(2 + 1 + 3 + 2), Y: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			z, _ := zones.Get(tt.id)
			if got := r.Resolve(z, sized(4, 4), &central); got != tt.want {
				t.Errorf("Resolve(%s) = %+v, want %+v", tt.id, got, tt.want)
			}
		})
	}
}

func TestResolveCentralGrowthPushesOutward(t *testing.T) {
	zones := mustZones(t,
		model.Zone{ID: "vip", Capacity: 16, Central: true},
		model.Zone{ID: "e", Capacity: 25, Direction: model.East},
	)
	r := NewResolver(zones)
	e, _ := zones.Get("e")
	own := sized(3, 3)

	small := sized(2, 2)
	large := sized(6, 6)

	noCentral := r.Resolve(e, own, nil)
	before := r.Resolve(e, own, &small)
	after := r.Resolve(e, own, &large)

	if !(noCentral.X < before.X && before.X < after.X) {
		t.Errorf("X offsets %v, %v, %v should grow with the central zone", noCentral.X, before.X, after.X)
	}
	if after.X-before.X != 2 {
		t.Errorf("growth of central width by 4 moved zone by %v, want 2", after.X-before.X)
	}
}

func TestWithGap(t *testing.T) {
	zones := mustZones(t, model.Zone{ID: "e", Capacity: 4, Direction: model.East})

	if g := NewResolver(zones).Gap(); g != DefaultGap {
		t.Errorf("default Gap() = %v, want %v", g, DefaultGap)
	}
	if g := NewResolver(zones, WithGap(5)).Gap(); g != 5 {
		t.Errorf("Gap() = %v, want 5", g)
	}
	if g := NewResolver(zones, WithGap(-3)).Gap(); g != DefaultGap {
		t.Errorf("negative gap should be ignored, got %v", g)
	}
	if l := NewResolver(nil).Lane(); l != 0 {
		t.Errorf("Lane() without zones = %v, want 0", l)
	}
}

func TestOverlaps(t *testing.T) {
	a := Box{MinX: 0, MaxX: 4, MinY: 0, MaxY: 4}

	tests := []struct {
		name string
		b    Box
		want bool
	}{
		{"same", a, true},
		{"touching", Box{MinX: 4, MaxX: 6, MinY: 0, MaxY: 4}, false},
		{"partial", Box{MinX: 3, MaxX: 6, MinY: 3, MaxY: 6}, true},
		{"disjoint", Box{MinX: -5, MaxX: -1, MinY: 0, MaxY: 4}, false},
		{"empty", Box{MinX: 1, MaxX: 1, MinY: 1, MaxY: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(a, tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoxOf(t *testing.T) {
	b := BoxOf(Position{X: 10, Y: -4}, sized(6, 2))
	want := Box{MinX: 7, MaxX: 13, MinY: -5, MaxY: -3}
	if b != want {
		t.Errorf("BoxOf() = %+v, want %+v", b, want)
	}
	if b.Width() != 6 || b.Height() != 2 {
		t.Errorf("size = %vx%v, want 6x2", b.Width(), b.Height())
	}
}

// Zone boxes never overlap, whatever the mix of capacities and occupancies,
// including zones holding up to three times their capacity.
func TestResolveNoOverlap(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))

	for i := 0; i < 60; i++ {
		zs := []model.Zone{{ID: "vip", Capacity: 1 + rng.IntN(200), Central: true}}
		for j, d := range compass {
			if rng.IntN(4) == 0 {
				continue
			}
			zs = append(zs, model.Zone{ID: fmt.Sprintf("z%d", j), Capacity: 1 + rng.IntN(300), Direction: d})
		}
		zones := mustZones(t, zs...)
		r := NewResolver(zones, WithGap(float64(rng.IntN(3))))

		results := make(map[string]layout.Result)
		for _, z := range zones.All() {
			n := rng.IntN(3*z.Capacity + 1)
			entities := make([]model.Entity, n)
			for k := range entities {
				entities[k] = model.Entity{ID: fmt.Sprintf("%s-%d", z.ID, k), ZoneID: z.ID, Weight: float64(rng.IntN(500))}
			}
			results[z.ID] = layout.ComputeZone(z, entities)
		}

		central := results["vip"]
		boxes := make(map[string]Box)
		for _, z := range zones.All() {
			boxes[z.ID] = BoxOf(r.Resolve(z, results[z.ID], &central), results[z.ID])
		}

		for a, ba := range boxes {
			for b, bb := range boxes {
				if a < b && Overlaps(ba, bb) {
					t.Errorf("case %d: %s %+v overlaps %s %+v", i, a, ba, b, bb)
				}
			}
		}
	}
}

func TestResolveOverflowGrowsOutward(t *testing.T) {
	zones := mustZones(t,
		model.Zone{ID: "vip", Capacity: 4, Central: true},
		model.Zone{ID: "e", Capacity: 4, Direction: model.East},
		model.Zone{ID: "ne", Capacity: 4, Direction: model.NorthEast},
		model.Zone{ID: "w", Capacity: 4, Direction: model.West},
		model.Zone{ID: "s", Capacity: 4, Direction: model.South},
	)
	r := NewResolver(zones)

	crowd := func(zoneID string, n int) []model.Entity {
		out := make([]model.Entity, n)
		for i := range out {
			out[i] = model.Entity{ID: fmt.Sprintf("%s%02d", zoneID, i), ZoneID: zoneID, Weight: 1}
		}
		return out
	}
	counts := map[string]int{"e": 12, "ne": 1, "w": 12, "s": 12}

	boxes := make(map[string]Box)
	for _, z := range zones.All() {
		if z.Central {
			continue
		}
		res := layout.ComputeZone(z, crowd(z.ID, counts[z.ID]))
		boxes[z.ID] = BoxOf(r.Resolve(z, res, nil), res)
	}

	// Three times the capacity of a 2x2 grid: six cells deep, two across.
	if e := boxes["e"]; e.Height() != 2 || e.Width() != 6 || e.MinX != 2 {
		t.Errorf("east box = %+v, want 6 wide, 2 tall, inner edge at x=2", e)
	}
	if w := boxes["w"]; w.Height() != 2 || w.MaxX != -2 {
		t.Errorf("west box = %+v, want 2 tall with inner edge at x=-2", w)
	}
	if s := boxes["s"]; s.Width() != 2 || s.MaxY != -2 {
		t.Errorf("south box = %+v, want 2 wide with inner edge at y=-2", s)
	}
	for a, ba := range boxes {
		for b, bb := range boxes {
			if a < b && Overlaps(ba, bb) {
				t.Errorf("%s %+v overlaps %s %+v", a, ba, b, bb)
			}
		}
	}
}
