package model

import (
	"testing"

	"github.com/matzehuels/territory/pkg/errors"
)

func TestEntityValidate(t *testing.T) {
	tests := []struct {
		name    string
		entity  Entity
		wantErr bool
	}{
		{"valid", Entity{ID: "a", ZoneID: "north", Weight: 10}, false},
		{"zero weight", Entity{ID: "a", ZoneID: "north"}, false},
		{"missing id", Entity{ZoneID: "north", Weight: 1}, true},
		{"missing zone", Entity{ID: "a", Weight: 1}, true},
		{"negative weight", Entity{ID: "a", ZoneID: "north", Weight: -5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entity.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeMalformedEvent) {
				t.Errorf("Validate() code = %v, want MALFORMED_EVENT", errors.GetCode(err))
			}
		})
	}
}

func TestEntityEqual(t *testing.T) {
	base := Entity{ID: "a", ZoneID: "z", Weight: 1, Name: "Ada", Attributes: map[string]any{"flag": "x"}}

	tests := []struct {
		name  string
		other Entity
		want  bool
	}{
		{"identical", base.Clone(), true},
		{"weight differs", Entity{ID: "a", ZoneID: "z", Weight: 2, Name: "Ada", Attributes: map[string]any{"flag": "x"}}, false},
		{"name differs", Entity{ID: "a", ZoneID: "z", Weight: 1, Name: "Bob", Attributes: map[string]any{"flag": "x"}}, false},
		{"attribute differs", Entity{ID: "a", ZoneID: "z", Weight: 1, Name: "Ada", Attributes: map[string]any{"flag": "y"}}, false},
		{"attributes missing", Entity{ID: "a", ZoneID: "z", Weight: 1, Name: "Ada"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}

	if !(Entity{ID: "a"}).Equal(Entity{ID: "a", Attributes: map[string]any{}}) {
		t.Error("nil and empty attributes should compare equal")
	}
}

func TestEntityCloneDoesNotShareAttributes(t *testing.T) {
	e := Entity{ID: "a", Attributes: map[string]any{"k": "v"}}
	c := e.Clone()
	c.Attributes["k"] = "changed"
	if e.Attributes["k"] != "v" {
		t.Error("Clone() shares the attributes map")
	}
}

func TestSortByWeight(t *testing.T) {
	entities := []Entity{
		{ID: "c", Weight: 5},
		{ID: "b", Weight: 10},
		{ID: "a", Weight: 5},
		{ID: "d", Weight: 0},
	}
	SortByWeight(entities)

	want := []string{"b", "a", "c", "d"}
	for i, id := range want {
		if entities[i].ID != id {
			t.Errorf("position %d = %q, want %q", i, entities[i].ID, id)
		}
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input   string
		want    Direction
		wantErr bool
	}{
		{"north", North, false},
		{"NorthWest", NorthWest, false},
		{"north-west", NorthWest, false},
		{"SE", SouthEast, false},
		{"", Center, false},
		{"centre", Center, false},
		{"up", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDirection(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDirection(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDirection(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDirectionVector(t *testing.T) {
	dx, dy := NorthWest.Vector()
	if dx != -1 || dy != 1 {
		t.Errorf("NorthWest.Vector() = (%v, %v), want (-1, 1)", dx, dy)
	}
	dx, dy = Center.Vector()
	if dx != 0 || dy != 0 {
		t.Errorf("Center.Vector() = (%v, %v), want (0, 0)", dx, dy)
	}
}

func TestNominalSide(t *testing.T) {
	tests := []struct{ capacity, want int }{
		{0, 0},
		{-3, 0},
		{1, 1},
		{2, 2},
		{4, 2},
		{5, 3},
		{100, 10},
		{101, 11},
	}
	for _, tt := range tests {
		if got := NominalSide(tt.capacity); got != tt.want {
			t.Errorf("NominalSide(%d) = %d, want %d", tt.capacity, got, tt.want)
		}
	}
}

func TestNewZones(t *testing.T) {
	zs, err := NewZones([]Zone{
		{ID: "vip", Capacity: 16, Central: true},
		{ID: "north", Capacity: 100, Direction: North},
		{ID: "west", Capacity: 36, Direction: West},
	})
	if err != nil {
		t.Fatalf("NewZones() error: %v", err)
	}

	if zs.Len() != 3 {
		t.Errorf("Len() = %d, want 3", zs.Len())
	}
	if zs.CentralID() != "vip" {
		t.Errorf("CentralID() = %q, want vip", zs.CentralID())
	}
	if c, _ := zs.Central(); c.Direction != Center {
		t.Errorf("central direction = %q, want center", c.Direction)
	}
	if zs.Lane() != 5 {
		t.Errorf("Lane() = %v, want 5", zs.Lane())
	}
	if ids := zs.IDs(); ids[0] != "vip" || ids[2] != "west" {
		t.Errorf("IDs() = %v, want configuration order", ids)
	}
}

func TestNewZonesRejects(t *testing.T) {
	tests := []struct {
		name  string
		zones []Zone
	}{
		{"duplicate id", []Zone{{ID: "a", Capacity: 1, Direction: North}, {ID: "a", Capacity: 1, Direction: South}}},
		{"two central", []Zone{{ID: "a", Capacity: 1, Central: true}, {ID: "b", Capacity: 1, Central: true}}},
		{"shared direction", []Zone{{ID: "a", Capacity: 1, Direction: North}, {ID: "b", Capacity: 1, Direction: North}}},
		{"no direction", []Zone{{ID: "a", Capacity: 1}}},
		{"zero capacity", []Zone{{ID: "a", Capacity: 0, Direction: East}}},
		{"central with direction", []Zone{{ID: "a", Capacity: 4, Central: true, Direction: East}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewZones(tt.zones)
			if err == nil {
				t.Fatal("NewZones() expected error")
			}
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("NewZones() code = %v, want INVALID_CONFIG", errors.GetCode(err))
			}
		})
	}
}
