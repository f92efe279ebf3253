package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/geoslice/internal/logging"
	"github.com/kiesman99/geoslice/internal/tracing"
	"github.com/kiesman99/geoslice/pkg/flight"
	"github.com/kiesman99/geoslice/pkg/geo"
	"github.com/kiesman99/geoslice/pkg/raster"
)

// version is overridden at build time with -ldflags "-X ...cmd.version=..."
var version = "0.1.0"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "geoslice",
	Short: "Cut sensor windows out of georeferenced rasters along simulated drone flights",
	Long: `geoslice serves bounds-safe windows of a band-sequential raster and flies
simulated drones over it, cutting out the ground footprint seen at every waypoint.

A dataset is a pair of files sharing a base name: <base>.json describes the
raster (dtype, count, height, width, transform, crs) and <base>.bin holds the
band-sequential little-endian pixel data.

Examples:
  # Describe a dataset
  geoslice info data/test_map

  # Cut a window and write it as PNG with a world file
  geoslice window data/test_map --x 100 --y 50 --width 64 --height 64 -o window.png -w

  # Fly a spiral over the map and save every frame
  geoslice simulate data/test_map --pattern spiral --lat 31.6 --lon 33.0 --waypoints 20 --out-dir frames

  # Start HTTP server
  geoslice serve data/test_map --port 8080`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.geoslice.yaml)")
	rootCmd.PersistentFlags().String("backend", "memory", "payload backend (memory|mmap)")
	rootCmd.PersistentFlags().Int("zone", 0, "projection zone (default: from the dataset CRS, else 36)")

	// Logging
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text|json)")

	// Tracing
	rootCmd.PersistentFlags().Bool("tracing", false, "enable OpenTelemetry tracing")
	rootCmd.PersistentFlags().String("tracing-exporter", "stdout", "trace exporter (stdout|otlp)")
	rootCmd.PersistentFlags().String("tracing-endpoint", "localhost:4317", "OTLP gRPC endpoint")

	// Bind flags to viper
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("zone", rootCmd.PersistentFlags().Lookup("zone"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("tracing"))
	viper.BindPFlag("tracing.exporter", rootCmd.PersistentFlags().Lookup("tracing-exporter"))
	viper.BindPFlag("tracing.endpoint", rootCmd.PersistentFlags().Lookup("tracing-endpoint"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".geoslice" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".geoslice")
	}

	// GEOSLICE_LOG_LEVEL, GEOSLICE_SERVER_PORT, ...
	viper.SetEnvPrefix("geoslice")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger() logging.Logger {
	return logging.New(logging.Config{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
	})
}

func startTracing(ctx context.Context, log logging.Logger) (func(context.Context) error, error) {
	return tracing.Init(ctx, tracing.Config{
		Enabled:     viper.GetBool("tracing.enabled"),
		ServiceName: "geoslice",
		Exporter:    viper.GetString("tracing.exporter"),
		Endpoint:    viper.GetString("tracing.endpoint"),
	}, log)
}

// openDataset opens base with the configured backend
func openDataset(base string) (*raster.Dataset, error) {
	backend, err := raster.ParseBackend(viper.GetString("backend"))
	if err != nil {
		return nil, err
	}
	ds, err := raster.Open(base, raster.WithBackend(backend))
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", base, err)
	}
	return ds, nil
}

// transformFor honors --zone, falling back to the dataset's CRS
func transformFor(meta raster.Metadata) (*geo.Transform, error) {
	zone := viper.GetInt("zone")
	if zone == 0 {
		return flight.TransformFor(meta), nil
	}
	if zone < 1 || zone > 60 {
		return nil, fmt.Errorf("zone must be between 1 and 60, got %d", zone)
	}
	return geo.New(meta.Transform, zone), nil
}
