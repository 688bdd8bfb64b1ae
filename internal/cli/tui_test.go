package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/territory/pkg/core/layout"
	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/store"
)

func TestRenderGrid(t *testing.T) {
	res := layout.Compute([]model.Entity{
		{ID: "big", ZoneID: "z", Weight: 3},
		{ID: "small", ZoneID: "z", Weight: 1},
	}, 16)

	got := renderGrid(res, 48, 16)
	lines := strings.Split(got, "\n")
	if len(lines) != res.Boundary.Height {
		t.Fatalf("rows = %d, want %d", len(lines), res.Boundary.Height)
	}
	for _, line := range lines {
		if len(line) != res.Boundary.Width {
			t.Errorf("row %q has width %d, want %d", line, len(line), res.Boundary.Width)
		}
	}
	if got[0] != 'A' {
		t.Errorf("top-left glyph = %c, want A (heaviest)", got[0])
	}
	if !strings.Contains(got, "B") {
		t.Error("second entity missing from grid")
	}
}

func TestRenderGridScalesDown(t *testing.T) {
	res := layout.Result{
		Placements: []layout.Placement{{EntityID: "a", Width: 100, Height: 40}},
		Boundary:   layout.Boundary{MaxX: 100, MaxY: 40, Width: 100, Height: 40},
	}
	got := renderGrid(res, 10, 5)
	want := strings.TrimSuffix(strings.Repeat("AAAAAAAAAA\n", 5), "\n")
	if got != want {
		t.Errorf("renderGrid =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderGridEmpty(t *testing.T) {
	if got := renderGrid(layout.Result{}, 10, 10); got != "" {
		t.Errorf("renderGrid(empty) = %q, want empty", got)
	}
}

func TestZoneBrowserNavigation(t *testing.T) {
	snap := store.Snapshot{Zones: []store.ZoneState{
		{Zone: model.Zone{ID: "vip", Central: true, Capacity: 4}},
		{Zone: model.Zone{ID: "north", Capacity: 9, Direction: model.North}},
	}}
	var m tea.Model = NewZoneBrowserModel(snap)

	press := func(key string) {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	}
	press("j")
	press("j")
	if got := m.(ZoneBrowserModel).Cursor; got != 1 {
		t.Errorf("cursor after two downs = %d, want 1", got)
	}
	press("k")
	if got := m.(ZoneBrowserModel).Cursor; got != 0 {
		t.Errorf("cursor after up = %d, want 0", got)
	}

	view := m.View()
	for _, want := range []string{"vip", "north", "central", "empty zone"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("q should quit")
	}
}
