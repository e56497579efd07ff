package cli

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/princespaghetti/poe2arb/internal/bridge"
	"github.com/princespaghetti/poe2arb/internal/gateway"
	"github.com/princespaghetti/poe2arb/internal/server"
)

var (
	serveHost string
	servePort int
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bridge commands to the UI over loopback HTTP",
	Long: `Start the local invoke server.

Routes:
  POST /invoke/<command>  run a bridge command with the JSON body as args
  GET  /health            liveness and registered commands
  GET  /metrics           Prometheus metrics

The server binds to POE2ARB_SERVER_HOST:POE2ARB_SERVER_PORT
(127.0.0.1:1421 by default). Allowed browser origins come from
POE2ARB_CORS_ORIGINS. Stop it with Ctrl-C.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Override POE2ARB_SERVER_HOST")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override POE2ARB_SERVER_PORT")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := *app.cfg
	if serveHost != "" {
		cfg.ServerHost = serveHost
	}
	if servePort != 0 {
		cfg.ServerPort = servePort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !cfg.IsLoopback() {
		Warning(cmd.ErrOrStderr(), "serving on %s, which is reachable from other machines", cfg.Addr())
	}

	if !cfg.LogDev {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	logger := app.logger.Logger
	gw := newGateway(gateway.WithMetrics(gateway.NewMetrics(reg)))
	registry := bridge.NewDefault(gw, logger)

	logger.Info("Bridge ready",
		zap.Strings("commands", registry.Commands()),
		zap.Strings("allowed_hosts", gw.Policy().Hosts()),
		zap.Strings("cors_origins", cfg.CORSOrigins),
	)
	return server.New(&cfg, registry, reg, logger).Run(cmd.Context())
}
