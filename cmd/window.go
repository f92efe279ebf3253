package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiesman99/geoslice/internal/export"
	"github.com/kiesman99/geoslice/pkg/raster"
)

var windowCmd = &cobra.Command{
	Use:   "window <base>",
	Short: "Cut a pixel window out of a dataset",
	Long: `Cut a pixel window out of a dataset.

The window is clamped to the raster: a negative x or y starts at 0 without
shrinking the requested size, and the width and height are cut at the raster
edge. Use --strict to refuse windows that do not lie fully inside.

Output ending in .png is written as an image (uint8 rasters with 1, 3 or 4
bands); anything else receives the raw band-sequential bytes.

Examples:
  geoslice window data/test_map --x 100 --y 50 --width 64 --height 64 -o window.png -w
  geoslice window data/test_map --x 0 --y 0 --width 16 --height 16 > window.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runWindow,
}

func init() {
	rootCmd.AddCommand(windowCmd)

	windowCmd.Flags().Int("x", 0, "left pixel column")
	windowCmd.Flags().Int("y", 0, "top pixel row")
	windowCmd.Flags().Int("width", 0, "window width in pixels (required)")
	windowCmd.Flags().Int("height", 0, "window height in pixels (required)")
	windowCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	windowCmd.Flags().BoolP("worldfile", "w", false, "write world file")
	windowCmd.Flags().Bool("strict", false, "fail unless the window lies fully inside the raster")

	windowCmd.MarkFlagRequired("width")
	windowCmd.MarkFlagRequired("height")
}

func runWindow(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	x, _ := flags.GetInt("x")
	y, _ := flags.GetInt("y")
	width, _ := flags.GetInt("width")
	height, _ := flags.GetInt("height")
	output, _ := flags.GetString("output")
	worldFile, _ := flags.GetBool("worldfile")
	strict, _ := flags.GetBool("strict")

	if width <= 0 || height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	if worldFile && output == "" {
		return fmt.Errorf("can't write a world file when writing to stdout")
	}

	ds, err := openDataset(args[0])
	if err != nil {
		return err
	}
	defer ds.Close()

	if strict && !ds.IsValidWindow(x, y, width, height) {
		return fmt.Errorf("window (%d,%d %dx%d) is not inside the %dx%d raster", x, y, width, height, ds.Width(), ds.Height())
	}

	tile := ds.WindowCopy(x, y, width, height)
	if tile.Empty() {
		return fmt.Errorf("window (%d,%d %dx%d) does not overlap the %dx%d raster", x, y, width, height, ds.Width(), ds.Height())
	}

	if err := export.WriteTile(output, tile); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Output: %s (%d bands, %dx%d %s)\n", output, tile.Bands, tile.Width, tile.Height, tile.Type)
	}

	if worldFile {
		tr, err := transformFor(ds.Metadata())
		if err != nil {
			return err
		}
		clamped := raster.Window{X: max(0, x), Y: max(0, y), Width: tile.Width, Height: tile.Height}
		name, err := export.WriteWorldFile(output, tr, clamped)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "World file written to '%s'.\n", name)
	}
	return nil
}
