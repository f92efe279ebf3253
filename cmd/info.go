package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiesman99/geoslice/pkg/geo"
)

var infoCmd = &cobra.Command{
	Use:   "info <base>",
	Short: "Print dataset metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ds, err := openDataset(args[0])
	if err != nil {
		return err
	}
	defer ds.Close()

	tr, err := transformFor(ds.Metadata())
	if err != nil {
		return err
	}

	meta := ds.Metadata()
	crs := meta.CRS
	if crs == "" {
		crs = "(none)"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dataset:    %s\n", ds.Base)
	fmt.Fprintf(out, "Backend:    %s\n", ds.Backend)
	fmt.Fprintf(out, "DType:      %s\n", meta.DType)
	fmt.Fprintf(out, "Shape:      %d bands x %d rows x %d cols\n", meta.Count, meta.Height, meta.Width)
	fmt.Fprintf(out, "Payload:    %d bytes\n", meta.TotalBytes())
	fmt.Fprintf(out, "Transform:  %v\n", meta.Transform)
	fmt.Fprintf(out, "CRS:        %s\n", crs)
	fmt.Fprintf(out, "Zone:       %d (central meridian %g)\n", tr.Zone, tr.CentralMeridian)

	lat0, lon0 := tr.PixelToLatLon(0, 0)
	lat1, lon1 := tr.PixelToLatLon(meta.Width, meta.Height)
	fmt.Fprintf(out, "Upper left: %.6f, %.6f\n", lat0, lon0)
	fmt.Fprintf(out, "Lower right: %.6f, %.6f\n", lat1, lon1)
	if z := geo.ZoneForLon((lon0 + lon1) / 2); z != tr.Zone {
		fmt.Fprintf(out, "Warning:    the raster center lies in zone %d, pass --zone %d if the CRS is missing\n", z, z)
	}
	return nil
}
