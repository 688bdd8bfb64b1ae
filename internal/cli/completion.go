package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const completionHelp = `Generate a shell completion script for territory.

Load completions into the current shell:

  bash:        source <(territory completion bash)
  zsh:         source <(territory completion zsh)
  fish:        territory completion fish | source
  powershell:  territory completion powershell | Out-String | Invoke-Expression

To keep them across sessions, write the script to your shell's completion
directory instead, e.g.

  territory completion zsh > "${fpath[1]}/_territory"
  territory completion fish > ~/.config/fish/completions/territory.fish
`

// completionCommand writes a completion script for the named shell to stdout.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate shell completion scripts",
		Long:                  completionHelp,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, w := cmd.Root(), cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(w, true)
			case "zsh":
				return root.GenZshCompletion(w)
			case "fish":
				return root.GenFishCompletion(w, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(w)
			}
			return fmt.Errorf("unsupported shell %q", args[0])
		},
	}
}
