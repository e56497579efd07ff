package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
	"github.com/princespaghetti/poe2arb/internal/poeninja"
	"github.com/princespaghetti/poe2arb/internal/snapshot"
)

var (
	fetchEndpoint string
	fetchLeague   string
	fetchID       string
	fetchSave     string
	fetchCompact  bool
)

// fetchCmd represents the fetch command.
var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Fetch JSON from poe.ninja through the gateway",
	Long: `Fetch a JSON document through the gateway and print it to stdout.

Pass either a full URL or --endpoint with the parameters it needs.
Only https URLs on poe.ninja are accepted; anything else is rejected
before a request is made.

Endpoints:
  index-state  league list and snapshot versions
  search       exchange search index (--league)
  overview     currency overview (--league)
  details      one currency's history (--league, --id)

Exit codes:
  2  usage or configuration error
  3  URL rejected by the allowlist
  4  network failure or non-2xx response
  5  response is not JSON

Examples:
  poe2arb fetch https://poe.ninja/poe2/api/data/index-state
  poe2arb fetch --endpoint overview --league "Rise of the Abyssal"
  poe2arb fetch --endpoint details --league Standard --id divine-orb --save divine`,
	Args: usageArgs(cobra.MaximumNArgs(1)),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchEndpoint, "endpoint", "", "poe.ninja endpoint: "+strings.Join(poeninja.Endpoints(), ", "))
	fetchCmd.Flags().StringVar(&fetchLeague, "league", "", "League name for league-scoped endpoints")
	fetchCmd.Flags().StringVar(&fetchID, "id", "", "Currency id for the details endpoint")
	fetchCmd.Flags().StringVar(&fetchSave, "save", "", "Also save the payload as a named snapshot")
	fetchCmd.Flags().BoolVar(&fetchCompact, "compact", false, "Print JSON on a single line")

	_ = fetchCmd.RegisterFlagCompletionFunc("endpoint", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return poeninja.Endpoints(), cobra.ShellCompDirectiveNoFileComp
	})
}

// resolveFetchURL picks the URL from the positional argument or the endpoint flags.
func resolveFetchURL(args []string) (string, error) {
	switch {
	case len(args) == 1 && fetchEndpoint != "":
		return "", fmt.Errorf("%w: pass a url or --endpoint, not both", poeerrors.ErrUsage)
	case len(args) == 1:
		return args[0], nil
	case fetchEndpoint != "":
		u, err := poeninja.URLFor(fetchEndpoint, poeninja.Params{League: fetchLeague, DetailsID: fetchID})
		if err != nil {
			return "", fmt.Errorf("%w: %w", poeerrors.ErrUsage, err)
		}
		return u, nil
	default:
		return "", fmt.Errorf("%w: a url or --endpoint is required", poeerrors.ErrUsage)
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	rawURL, err := resolveFetchURL(args)
	if err != nil {
		return err
	}

	var store *snapshot.Store
	if fetchSave != "" {
		if err := snapshot.ValidateName(fetchSave); err != nil {
			return err
		}
		if store, err = snapshot.NewStore(app.cfg.SnapshotDir); err != nil {
			return fmt.Errorf("%w: %w", poeerrors.ErrInvalidConfig, err)
		}
	}

	value, err := newGateway().FetchJSON(cmd.Context(), rawURL)
	if err != nil {
		return err
	}

	if err := writeValue(cmd, value, fetchCompact); err != nil {
		return err
	}

	if store != nil {
		entry, err := store.Save(cmd.Context(), fetchSave, rawURL, value)
		if err != nil {
			return err
		}
		Success(cmd.ErrOrStderr(), "Saved snapshot %s (%s) to %s",
			entry.Name, FormatBytes(entry.SizeBytes), store.PayloadPath(entry.Name))
	}
	return nil
}

func writeValue(cmd *cobra.Command, value any, compact bool) error {
	out := cmd.OutOrStdout()
	if !compact {
		return JSON(out, value)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}
