package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/uwb-tracker/internal/config"
	"github.com/oshokin/uwb-tracker/internal/hazard"
	"github.com/oshokin/uwb-tracker/internal/service/watcher"
	"github.com/oshokin/uwb-tracker/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// interval between polls.
	interval time.Duration
	// minTier is the lowest reported tier.
	minTier string

	// rootCmd represents the base command for watching hazards.
	rootCmd = &cobra.Command{
		Use:   "uwb-watch [server-address]",
		Short: "Report tags with elevated gas readings.",
		Long: `Polls the tracker over gRPC and logs every tag whose hazard tier is at or
above --min-tier, together with its last known position. Tags leaving the
reported tiers are logged once when they recover.

Server address can be provided as argument or loaded from configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			tier, ok := hazard.ParseTier(minTier)
			if !ok {
				return fmt.Errorf("unknown tier %q", minTier)
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var serverAddress string
			if len(args) > 0 {
				serverAddress = args[0]
			}

			options := &watcher.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				PollInterval:  interval,
				MinTier:       tier,
			}

			return watcher.Run(ctx, options)
		},
	}
)

// Execute runs the uwb-watch CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().DurationVarP(&interval, "interval", "i", watcher.DefaultPollInterval, "polling interval")
	rootCmd.Flags().StringVar(&minTier, "min-tier", string(hazard.TierWarning), "lowest reported tier: ok, warning, alert")
}
