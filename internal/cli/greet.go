package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/poe2arb/internal/bridge"
)

// greetCmd represents the greet command.
var greetCmd = &cobra.Command{
	Use:   "greet <name>",
	Short: "Print the demo greeting",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), bridge.GreetMessage(args[0]))
		return err
	},
}

func init() {
	rootCmd.AddCommand(greetCmd)
}
