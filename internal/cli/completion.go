package cli

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/astkg/internal/config"
	"github.com/matzehuels/astkg/pkg/store"
)

// completionCommand creates the completion command.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for astkg.

Graph ids in the configured store complete for "store get", "store rm"
and every --id flag.

  $ source <(astkg completion bash)
  $ astkg completion zsh > "${fpath[1]}/_astkg"
  $ astkg completion fish > ~/.config/fish/completions/astkg.fish
  PS> astkg completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(os.Stdout, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
		},
	}
}

// completeGraphIDs lists stored graph ids matching the typed prefix.
// Completion bypasses PersistentPreRunE, so the config is loaded here.
func (c *CLI) completeGraphIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	ids, err := c.storedIDs(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveError
	}
	out := ids[:0]
	for _, id := range ids {
		if strings.HasPrefix(id, toComplete) && !slices.Contains(args, id) {
			out = append(out, id)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func (c *CLI) storedIDs(ctx context.Context) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.Config = cfg
	var ids []string
	err = c.withStore(ctx, func(st store.Store) error {
		ids, err = st.List(ctx)
		return err
	})
	return ids, err
}
