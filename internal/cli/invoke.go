package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/poe2arb/internal/bridge"
	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
)

// errCommandFailed marks an invocation whose response reported ok=false.
var errCommandFailed = errors.New("command failed")

// invokeCmd represents the invoke command.
var invokeCmd = &cobra.Command{
	Use:   "invoke <command> [args-json]",
	Short: "Call a bridge command the way the UI does",
	Long: `Call a bridge command and print the response envelope.

The response is the same JSON object the UI receives from
POST /invoke/<command>: {"id", "ok", "value"} or {"id", "ok", "error"}.

Examples:
  poe2arb invoke greet '{"name":"Exile"}'
  poe2arb invoke http_get_json '{"url":"https://poe.ninja/poe2/api/data/index-state"}'`,
	Args: usageArgs(cobra.RangeArgs(1, 2)),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return []string{bridge.CommandGreet, bridge.CommandHTTPGetJSON}, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runInvoke,
}

func init() {
	rootCmd.AddCommand(invokeCmd)
}

func runInvoke(cmd *cobra.Command, args []string) error {
	var raw json.RawMessage
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("%w: args must be valid JSON", poeerrors.ErrUsage)
		}
		raw = json.RawMessage(args[1])
	}

	registry := bridge.NewDefault(newGateway(), app.logger.Logger)
	resp, err := registry.Invoke(cmd.Context(), args[0], raw)
	if err != nil {
		return err
	}

	if err := JSON(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%w: %s", errCommandFailed, args[0])
	}
	return nil
}
