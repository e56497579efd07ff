package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
	"github.com/princespaghetti/poe2arb/internal/snapshot"
)

var snapshotJSON bool

// snapshotCmd represents the snapshot command.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect payloads saved with 'fetch --save'",
	Long: `Inspect saved snapshots.

Snapshots live in POE2ARB_SNAPSHOT_DIR (default ~/.poe2arb/snapshots)
and are recorded in index.json with their source URL and SHA256.

Commands:
  list  - List saved snapshots
  show  - Print a snapshot after verifying its checksum`,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved snapshots",
	Args:  usageArgs(cobra.NoArgs),
	RunE:  runSnapshotList,
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a saved snapshot",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runSnapshotShow,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)

	snapshotListCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Output in JSON format")
}

func openStore() (*snapshot.Store, error) {
	store, err := snapshot.NewStore(app.cfg.SnapshotDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", poeerrors.ErrInvalidConfig, err)
	}
	return store, nil
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	entries, err := store.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if snapshotJSON {
		return JSON(out, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintf(out, "No snapshots in %s\n", store.BasePath())
		return nil
	}

	table := NewTable(out, "NAME", "FETCHED", "SIZE", "SOURCE")
	for _, e := range entries {
		table.AddRow(
			e.Name,
			e.Fetched.Local().Format("2006-01-02 15:04"),
			FormatBytes(e.SizeBytes),
			TruncateString(e.SourceURL, 60),
		)
	}
	table.Print()
	return nil
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	data, entry, err := store.Read(args[0])
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	Field(errOut, "Source", entry.SourceURL)
	Field(errOut, "Fetched", entry.Fetched.Local().Format("2006-01-02 15:04:05 MST"))
	Field(errOut, "SHA256", entry.SHA256)

	_, err = cmd.OutOrStdout().Write(data)
	return err
}
