// Package cli provides the command-line interface for poe2arb.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/poe2arb/internal/config"
	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
	"github.com/princespaghetti/poe2arb/internal/gateway"
	"github.com/princespaghetti/poe2arb/internal/logging"
)

// Version information (will be set by build flags in production).
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var verbose bool

// app holds what every command needs once flags and environment are read.
var app struct {
	cfg    *config.Config
	logger *logging.Logger
	// client overrides the gateway's shared HTTP client; tests set it.
	client gateway.HTTPClient
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "poe2arb",
	Short: "Fetch poe.ninja market data through an allowlisted gateway",
	Long: `poe2arb fetches Path of Exile 2 market data from poe.ninja.

Every request goes through a gateway that only permits https URLs on
poe.ninja, sends a fixed user agent, and times out after 20 seconds.
The same gateway backs the UI bridge started by 'poe2arb serve'.

Settings are read from POE2ARB_* environment variables.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupApp,
}

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "poe2arb version %s\n", Version)
		fmt.Fprintf(out, "  commit: %s\n", GitCommit)
		fmt.Fprintf(out, "  built:  %s\n", BuildDate)
		fmt.Fprintf(out, "  agent:  %s\n", gateway.UserAgent)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	rootCmd.AddCommand(versionCmd)

	// Commands that skip setupApp, like completion, still get a usable logger.
	app.logger = logging.NewNop()
}

func setupApp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	if cfg.LogDev {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Level = cfg.LogLevel
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("%w: %w", poeerrors.ErrInvalidConfig, err)
	}

	app.cfg = cfg
	app.logger = logger
	return nil
}

func newGateway(opts ...gateway.Option) *gateway.Gateway {
	opts = append([]gateway.Option{gateway.WithLogger(app.logger.Logger)}, opts...)
	return gateway.New(app.client, opts...)
}

// usageArgs wraps a cobra validator so argument errors map to the usage exit code.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", poeerrors.ErrUsage, err)
		}
		return nil
	}
}

// Execute runs the root command and handles errors.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	_ = app.logger.Sync()
	if err != nil {
		Error(os.Stderr, "%v", err)
		os.Exit(poeerrors.ExitCodeFor(err))
	}
}
