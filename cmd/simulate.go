package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kiesman99/geoslice/internal/export"
	"github.com/kiesman99/geoslice/internal/logging"
	"github.com/kiesman99/geoslice/internal/tracing"
	"github.com/kiesman99/geoslice/pkg/flight"
	"github.com/kiesman99/geoslice/pkg/geo"
	"github.com/kiesman99/geoslice/pkg/raster"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <base>",
	Short: "Fly a generated path over a dataset and save every frame",
	Long: `Generate a flight path, fly it over a dataset and cut the sensor footprint
out of the raster at every waypoint.

Waypoints whose footprint does not lie fully inside the raster produce no
frame. Frames are written to --out-dir as frame_NNNN.png for uint8 rasters
with 1, 3 or 4 bands and as frame_NNNN.bin otherwise.

Patterns:
  spiral  --lat --lon --waypoints [--altitudes 50,100,...] [--radius-step]
  linear  --start-lat --start-lon --end-lat --end-lon --waypoints [--altitude]
  grid    --min-lat --min-lon --max-lat --max-lon --rows --cols [--altitude]

Examples:
  geoslice simulate data/test_map --pattern spiral --lat 31.6 --lon 33.0 --waypoints 20 --out-dir frames
  geoslice simulate data/test_map --pattern grid --min-lat 31.6 --min-lon 33.0 --max-lat 31.61 --max-lon 33.01 --rows 4 --cols 4 -w --out-dir frames`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	f := simulateCmd.Flags()
	f.String("pattern", "spiral", "path pattern (spiral|linear|grid)")

	// Spiral
	f.Float64("lat", 0, "spiral center latitude")
	f.Float64("lon", 0, "spiral center longitude")
	f.Float64Slice("altitudes", flight.DefaultAltitudes, "spiral altitude cycle in meters")
	f.Float64("radius-step", 0.0001, "spiral radius growth per waypoint in degrees")

	// Linear
	f.Float64("start-lat", 0, "linear start latitude")
	f.Float64("start-lon", 0, "linear start longitude")
	f.Float64("end-lat", 0, "linear end latitude")
	f.Float64("end-lon", 0, "linear end longitude")

	// Grid
	f.Float64("min-lat", 0, "grid minimum latitude (south boundary)")
	f.Float64("min-lon", 0, "grid minimum longitude (west boundary)")
	f.Float64("max-lat", 0, "grid maximum latitude (north boundary)")
	f.Float64("max-lon", 0, "grid maximum longitude (east boundary)")
	f.Int("rows", 3, "grid rows")
	f.Int("cols", 3, "grid columns")

	// Common
	f.Int("waypoints", 10, "number of waypoints (spiral, linear)")
	f.Float64("altitude", flight.DefaultAltitudeM, "altitude in meters (linear, grid)")
	f.Float64("fov", flight.DefaultFOVDeg, "sensor field of view in degrees")
	f.String("out-dir", "", "directory for frame files (default: don't write frames)")
	f.BoolP("worldfile", "w", false, "write a world file next to every frame")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	path, err := pathFromFlags(cmd)
	if err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("out-dir")
	worldFile, _ := cmd.Flags().GetBool("worldfile")
	if worldFile && outDir == "" {
		return fmt.Errorf("--worldfile requires --out-dir")
	}

	ds, err := openDataset(args[0])
	if err != nil {
		return err
	}
	defer ds.Close()

	tr, err := transformFor(ds.Metadata())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runID := uuid.NewString()
	log := newLogger().With(logging.String("run_id", runID))

	shutdown, err := startTracing(ctx, log)
	if err != nil {
		return err
	}
	defer tracing.Shutdown(context.Background(), shutdown, log)

	extracted := 0
	observer := func(s flight.DroneState, t *raster.Tile) {
		extracted++
		log.Debug(ctx, "frame extracted",
			logging.Float("timestamp", s.Timestamp),
			logging.Int("width", t.Width),
			logging.Int("height", t.Height),
		)
	}

	sim := flight.NewSimulator(ds, tr, flight.WithLogger(log))
	frames := sim.Run(ctx, path, observer)

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		for _, f := range frames {
			if !f.Valid() {
				continue
			}
			if err := writeFrame(outDir, f, tr, worldFile); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d waypoints, %d frames extracted, %d without data\n",
		runID, len(frames), extracted, len(frames)-extracted)
	for _, f := range frames {
		status := "no data"
		if f.Valid() {
			status = fmt.Sprintf("%dx%d", f.Window.Width, f.Window.Height)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %4d  lat=%.6f lon=%.6f alt=%.0f window=(%d,%d) %s\n",
			f.Index, f.State.Lat, f.State.Lon, f.State.AltitudeM, f.Window.X, f.Window.Y, status)
	}
	return nil
}

func writeFrame(dir string, f flight.Frame, tr *geo.Transform, worldFile bool) error {
	ext := ".bin"
	if export.CanEncodePNG(f.Tile) {
		ext = ".png"
	}
	name := filepath.Join(dir, fmt.Sprintf("frame_%04d%s", f.Index, ext))

	if err := export.WriteTile(name, f.Tile); err != nil {
		return fmt.Errorf("write frame %d: %w", f.Index, err)
	}
	if worldFile {
		if _, err := export.WriteWorldFile(name, tr, f.Window.Window()); err != nil {
			return fmt.Errorf("write world file for frame %d: %w", f.Index, err)
		}
	}
	return nil
}

func pathFromFlags(cmd *cobra.Command) (flight.Path, error) {
	flags := cmd.Flags()
	pattern, _ := flags.GetString("pattern")
	fov, _ := flags.GetFloat64("fov")
	altitude, _ := flags.GetFloat64("altitude")
	waypoints, _ := flags.GetInt("waypoints")

	requireAll := func(names ...string) error {
		for _, n := range names {
			if !flags.Changed(n) {
				return fmt.Errorf("pattern %s requires all of: --%s", pattern, strings.Join(names, ", --"))
			}
		}
		return nil
	}

	switch pattern {
	case "spiral":
		if err := requireAll("lat", "lon"); err != nil {
			return flight.Path{}, err
		}
		lat, _ := flags.GetFloat64("lat")
		lon, _ := flags.GetFloat64("lon")
		altitudes, _ := flags.GetFloat64Slice("altitudes")
		step, _ := flags.GetFloat64("radius-step")
		return flight.Spiral(flight.LatLon{Lat: lat, Lon: lon}, waypoints, altitudes, step, fov)

	case "linear":
		if err := requireAll("start-lat", "start-lon", "end-lat", "end-lon"); err != nil {
			return flight.Path{}, err
		}
		sLat, _ := flags.GetFloat64("start-lat")
		sLon, _ := flags.GetFloat64("start-lon")
		eLat, _ := flags.GetFloat64("end-lat")
		eLon, _ := flags.GetFloat64("end-lon")
		return flight.Linear(flight.LatLon{Lat: sLat, Lon: sLon}, flight.LatLon{Lat: eLat, Lon: eLon}, waypoints, altitude, fov)

	case "grid":
		if err := requireAll("min-lat", "min-lon", "max-lat", "max-lon"); err != nil {
			return flight.Path{}, err
		}
		var b flight.Bounds
		b.MinLat, _ = flags.GetFloat64("min-lat")
		b.MinLon, _ = flags.GetFloat64("min-lon")
		b.MaxLat, _ = flags.GetFloat64("max-lat")
		b.MaxLon, _ = flags.GetFloat64("max-lon")
		if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
			return flight.Path{}, fmt.Errorf("min-lat/min-lon must be less than max-lat/max-lon")
		}
		rows, _ := flags.GetInt("rows")
		cols, _ := flags.GetInt("cols")
		return flight.Grid(b, rows, cols, altitude, fov)
	}

	return flight.Path{}, fmt.Errorf("unknown pattern: %s", pattern)
}
