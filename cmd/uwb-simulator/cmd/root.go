package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/uwb-tracker/internal/config"
	"github.com/oshokin/uwb-tracker/internal/service/simulator"
	"github.com/oshokin/uwb-tracker/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// interval between publishing rounds.
	interval time.Duration
	// ticks limits the number of rounds.
	ticks int
	// seed for the random walk.
	seed uint64
	// hazardTag carries alert readings.
	hazardTag int

	// rootCmd represents the base command for the simulator.
	rootCmd = &cobra.Command{
		Use:   "uwb-simulator",
		Short: "Publish simulated anchor reports over MQTT.",
		Long: `Reads the roster from the tracker configuration and publishes one distance
report per tag and anchor every interval, as real anchors would.

Tags random-walk inside the area spanned by the anchors. The hazard tag
(the last roster tag unless --hazard-tag is set, -1 disables it) reports
alert-level gas readings about a third of the time.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &simulator.Options{
				ConfigPath: configPath,
				Interval:   interval,
				Ticks:      ticks,
				Seed:       seed,
				HazardTag:  hazardTag,
			}

			return simulator.Run(ctx, options)
		},
	}
)

// Execute runs the uwb-simulator CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().DurationVarP(&interval, "interval", "i", simulator.DefaultInterval, "time between publishing rounds")
	rootCmd.Flags().IntVarP(&ticks, "ticks", "n", 0, "stop after this many rounds, 0 runs forever")
	rootCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed, 0 picks one")
	rootCmd.Flags().IntVar(&hazardTag, "hazard-tag", 0, "tag with alert readings, 0 picks the last tag, -1 disables")
}
