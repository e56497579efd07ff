package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
)

// completionCmd represents the completion command.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for bash, zsh or fish.

To load completions:

Bash:

  $ source <(poe2arb completion bash)

Zsh:

  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:

  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  $ poe2arb completion zsh > "${fpath[1]}/_poe2arb"

Fish:

  $ poe2arb completion fish > ~/.config/fish/completions/poe2arb.fish`,
	ValidArgs: []string{"bash", "zsh", "fish"},
	Args:      usageArgs(cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs)),
	// Completion must work even when the environment is misconfigured.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runCompletion,
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	var err error
	switch args[0] {
	case "bash":
		err = cmd.Root().GenBashCompletionV2(out, true)
	case "zsh":
		err = cmd.Root().GenZshCompletion(out)
	case "fish":
		err = cmd.Root().GenFishCompletion(out, true)
	default:
		return fmt.Errorf("%w: unsupported shell %q", poeerrors.ErrUsage, args[0])
	}
	if err != nil {
		return fmt.Errorf("generate %s completion: %w", args[0], err)
	}
	return nil
}
