package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/uwb-tracker/internal/config"
	"github.com/oshokin/uwb-tracker/internal/logger"
	"github.com/oshokin/uwb-tracker/internal/service/tracker"
	"github.com/oshokin/uwb-tracker/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// httpListen overrides the HTTP listen address.
	httpListen string
	// logLevel overrides the configured log level.
	logLevel string
	// logFormat selects the log encoder.
	logFormat string

	// rootCmd represents the base command for running the tracker.
	rootCmd = &cobra.Command{
		Use:   "uwb-tracker [grpc-listen-address]",
		Short: "Track UWB tags from anchor distance reports.",
		Long: `Subscribes to anchor distance reports over MQTT, solves the 2D position of
every registered tag and classifies its gas reading.

Tags and anchors are read from the roster (JSON files or SQLite) and reloaded
every few seconds, or as soon as a roster file changes. Positions and anchor
liveness are served over gRPC and, when http_addr is set, over HTTP together
with roster editing, a debug log of recent messages and Prometheus metrics.

Only the port of grpc_addr is used for listening (e.g., :50051).
A listen address argument overrides it (e.g., :9090, 0.0.0.0:50051).`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(*cobra.Command, []string) error {
			return setupLogger(logFormat)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var grpcListen string
			if len(args) > 0 {
				grpcListen = args[0]
			}

			options := &tracker.Options{
				ConfigPath: configPath,
				GRPCListen: grpcListen,
				HTTPListen: httpListen,
				LogLevel:   logLevel,
			}

			return tracker.Run(ctx, options)
		},
	}
)

// Execute runs the uwb-tracker CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogger replaces the global logger when a non-default format is requested.
func setupLogger(raw string) error {
	format, ok := logger.ParseFormat(raw)
	if !ok {
		return fmt.Errorf("unknown log format %q", raw)
	}

	if format != logger.FormatConsole {
		logger.SetLogger(logger.NewWithFormat(logger.AtomicLevel(), format))
	}

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&httpListen, "http", "", "HTTP listen address, overrides http_addr")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&logFormat, "log-format", string(logger.FormatConsole), "log format: console or json")
}
