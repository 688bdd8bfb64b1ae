package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/territory/pkg/core/layout"
	"github.com/matzehuels/territory/pkg/store"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorMuted)
	gridStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(colorMuted)
)

// Preview bounds in terminal cells.
const (
	previewMaxWidth  = 48
	previewMaxHeight = 16
)

// glyphs label placements in the grid preview, heaviest first.
const glyphs = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// =============================================================================
// ZoneBrowserModel - Interactive snapshot browser
// =============================================================================

// ZoneBrowserModel is the bubbletea model for browsing the zones of a
// snapshot.
type ZoneBrowserModel struct {
	Snapshot store.Snapshot
	Cursor   int
	Height   int
	Offset   int
}

// NewZoneBrowserModel creates a new browser over snap.
func NewZoneBrowserModel(snap store.Snapshot) ZoneBrowserModel {
	return ZoneBrowserModel{Snapshot: snap, Height: 10}
}

func (m ZoneBrowserModel) Init() tea.Cmd {
	return nil
}

func (m ZoneBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Snapshot.Zones)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "home", "g":
			m.Cursor, m.Offset = 0, 0
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - previewMaxHeight - 10
		if m.Height < 3 {
			m.Height = 3
		}
	}
	return m, nil
}

func (m ZoneBrowserModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Zones"))
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d entities · %s", len(m.Snapshot.Entities), m.Snapshot.TakenAt.Format("2006-01-02 15:04:05"))))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  q quit"))
	b.WriteString("\n\n")

	if len(m.Snapshot.Zones) == 0 {
		b.WriteString(listDimStyle.Render("no zones"))
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Snapshot.Zones))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		zs := m.Snapshot.Zones[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		dir := string(zs.Zone.Direction)
		if zs.Zone.Central {
			dir = "central"
		}
		top := "—"
		if zs.Top != nil {
			top = zs.Top.ID
		}
		size, pos := "—", "—"
		if zs.Placement != nil {
			size = fmt.Sprintf("%dx%d", zs.Placement.Boundary.Width, zs.Placement.Boundary.Height)
		}
		if zs.Position != nil {
			pos = fmt.Sprintf("%.1f, %.1f", zs.Position.X, zs.Position.Y)
		}
		rows = append(rows, []string{
			cursor, zs.Zone.ID, dir, fmt.Sprintf("%d/%d", zs.Members, zs.Zone.Capacity), top, size, pos,
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers("", "Zone", "Direction", "Members", "Top", "Size", "Position").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Snapshot.Zones) {
				return lipgloss.NewStyle()
			}
			empty := m.Snapshot.Zones[idx].Placement == nil
			switch {
			case idx == m.Cursor && empty:
				return lipgloss.NewStyle().Foreground(colorMuted).Bold(true)
			case idx == m.Cursor:
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			case empty:
				return lipgloss.NewStyle().Foreground(colorMuted)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Snapshot.Zones))))
	b.WriteString("\n\n")

	zs := m.Snapshot.Zones[m.Cursor]
	if zs.Placement == nil || zs.Placement.Empty() {
		b.WriteString(listDimStyle.Render("  empty zone"))
		return b.String()
	}
	b.WriteString(gridStyle.Render(renderGrid(*zs.Placement, previewMaxWidth, previewMaxHeight)))
	b.WriteString("\n")
	b.WriteString(legend(*zs.Placement))
	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

// renderGrid draws res as text, one glyph per placement, scaled down to fit
// within maxW by maxH characters. Unoccupied cells are dots.
func renderGrid(res layout.Result, maxW, maxH int) string {
	bw, bh := res.Boundary.Width, res.Boundary.Height
	if bw <= 0 || bh <= 0 {
		return ""
	}
	w, h := min(bw, maxW), min(bh, maxH)

	var b strings.Builder
	for row := range h {
		for col := range w {
			x := res.Boundary.MinX + col*bw/w
			y := res.Boundary.MinY + row*bh/h
			b.WriteByte(glyphAt(res, x, y))
		}
		if row < h-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func glyphAt(res layout.Result, x, y int) byte {
	for i, p := range res.Placements {
		if x >= p.X && x < p.Right() && y >= p.Y && y < p.Bottom() {
			return glyphs[i%len(glyphs)]
		}
	}
	return '.'
}

// legend lists the entity behind each glyph.
func legend(res layout.Result) string {
	var parts []string
	for i, p := range res.Placements {
		if i == len(glyphs) {
			parts = append(parts, fmt.Sprintf("… %d more", len(res.Placements)-i))
			break
		}
		parts = append(parts, fmt.Sprintf("%c %s", glyphs[i], p.EntityID))
	}
	return listDimStyle.Render("  " + strings.Join(parts, "  "))
}
