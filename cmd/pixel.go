package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pixelCmd = &cobra.Command{
	Use:   "pixel <base>",
	Short: "Convert between lat/lon and pixel coordinates",
	Long: `Convert between lat/lon and pixel coordinates of a dataset.

With --lat and --lon the containing pixel is printed. With --px and --py the
lat/lon of the pixel's upper-left corner is printed.

Examples:
  geoslice pixel data/test_map --lat 31.62 --lon 33.01
  geoslice pixel data/test_map --px 100 --py 50`,
	Args: cobra.ExactArgs(1),
	RunE: runPixel,
}

func init() {
	rootCmd.AddCommand(pixelCmd)

	pixelCmd.Flags().Float64("lat", 0, "latitude in degrees")
	pixelCmd.Flags().Float64("lon", 0, "longitude in degrees")
	pixelCmd.Flags().Int("px", 0, "pixel column")
	pixelCmd.Flags().Int("py", 0, "pixel row")

	pixelCmd.MarkFlagsRequiredTogether("lat", "lon")
	pixelCmd.MarkFlagsRequiredTogether("px", "py")
	pixelCmd.MarkFlagsMutuallyExclusive("lat", "px")
	pixelCmd.MarkFlagsOneRequired("lat", "px")
}

func runPixel(cmd *cobra.Command, args []string) error {
	ds, err := openDataset(args[0])
	if err != nil {
		return err
	}
	defer ds.Close()

	tr, err := transformFor(ds.Metadata())
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	out := cmd.OutOrStdout()

	if flags.Changed("lat") {
		lat, _ := flags.GetFloat64("lat")
		lon, _ := flags.GetFloat64("lon")
		px, py := tr.LatLonToPixel(lat, lon)
		inside := px >= 0 && py >= 0 && px < ds.Width() && py < ds.Height()
		fmt.Fprintf(out, "px=%d py=%d inside=%t\n", px, py, inside)
		return nil
	}

	px, _ := flags.GetInt("px")
	py, _ := flags.GetInt("py")
	lat, lon := tr.PixelToLatLon(px, py)
	fmt.Fprintf(out, "lat=%.8f lon=%.8f\n", lat, lon)
	return nil
}
