package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/territory/pkg/store"
)

// stdout receives every status line. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

// =============================================================================
// Palette and Styles
// =============================================================================

var (
	colorTeal  = lipgloss.Color("36")
	colorGreen = lipgloss.Color("35")
	colorAmber = lipgloss.Color("220")
	colorRed   = lipgloss.Color("167")
	colorBlue  = lipgloss.Color("75")
	colorWhite = lipgloss.Color("255")
	colorGray  = lipgloss.Color("245")
	colorMuted = lipgloss.Color("240")
)

var (
	// StyleTitle is used for headings such as the zone browser title.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	// StyleLink renders addresses the server listens on.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)
	// StyleDim renders secondary text.
	StyleDim = lipgloss.NewStyle().Foreground(colorMuted)
	// StyleValue renders values next to labels.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)
	// StyleWarning renders warning text.
	StyleWarning = lipgloss.NewStyle().Foreground(colorAmber)

	styleIconSpinner = lipgloss.NewStyle().Foreground(colorTeal)
	styleLabel       = lipgloss.NewStyle().Foreground(colorGray).Width(16)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
)

// status pairs an icon with its color.
type status struct {
	icon  string
	style lipgloss.Style
}

var (
	statusOK   = status{"✓", lipgloss.NewStyle().Foreground(colorGreen)}
	statusFail = status{"✗", lipgloss.NewStyle().Foreground(colorRed)}
	statusWarn = status{"!", lipgloss.NewStyle().Foreground(colorAmber)}
	statusInfo = status{"›", lipgloss.NewStyle().Foreground(colorGray)}
)

func (s status) print(msg string) {
	fmt.Fprintln(stdout, s.style.Render(s.icon)+" "+msg)
}

// =============================================================================
// Status Lines
// =============================================================================

func printSuccess(format string, args ...any) { statusOK.print(fmt.Sprintf(format, args...)) }

func printError(format string, args ...any) { statusFail.print(fmt.Sprintf(format, args...)) }

func printWarning(format string, args ...any) {
	statusWarn.print(StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) { statusInfo.print(fmt.Sprintf(format, args...)) }

// printDetail prints an indented, muted line under the previous status.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile announces a file the command wrote.
func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render("→")+" "+StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, styleLabel.Render(key)+" "+StyleValue.Render(value))
}

func printNewline() { fmt.Fprintln(stdout) }

// printNextStep suggests the command to run after this one.
func printNextStep(description, cmd string) {
	fmt.Fprintln(stdout, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

// =============================================================================
// Summaries
// =============================================================================

// printStats prints a one-line layout summary, e.g.
// "3 entities · 4x2 cells · cached".
func printStats(entityCount, width, height int, cached bool) {
	var parts []string
	if entityCount > 0 {
		parts = append(parts, StyleDim.Render(fmt.Sprintf("%d entities", entityCount)))
	}
	if width > 0 && height > 0 {
		parts = append(parts, StyleDim.Render(fmt.Sprintf("%dx%d cells", width, height)))
	}
	if cached {
		parts = append(parts, statusOK.style.Render("cached"))
	} else {
		parts = append(parts, statusInfo.style.Render("fresh"))
	}
	fmt.Fprintln(stdout, "  "+strings.Join(parts, StyleDim.Render(" · ")))
}

var kindOrder = []store.Kind{
	store.NewEntity, store.WeightChange, store.ZoneChange,
	store.EntityRemoved, store.AttributeOnly, store.NoOp,
}

// printKinds prints notification counts by kind. Kinds with no
// notifications are left out.
func printKinds(counts map[store.Kind]int) {
	for _, k := range kindOrder {
		if n := counts[k]; n > 0 {
			printKeyValue(string(k), fmt.Sprint(n))
		}
	}
}
