package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	tio "github.com/matzehuels/territory/pkg/io"
)

// viewCommand creates the view command for browsing a snapshot.
func (c *CLI) viewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view [snapshot.json]",
		Short: "Browse the zones of a snapshot interactively",
		Long: `Browse the zones of a snapshot interactively.

Snapshots are written by 'replay' and served by 'serve' under /snapshot.
Select a zone to preview its packed grid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := tio.ImportSnapshot(args[0])
			if err != nil {
				return fmt.Errorf("load snapshot %s: %w", args[0], err)
			}
			p := tea.NewProgram(NewZoneBrowserModel(snap), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run viewer: %w", err)
			}
			return nil
		},
	}
}
