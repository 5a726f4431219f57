package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pipemap/internal/dataset"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the dataset as GeoJSON (EPSG:4326)",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrap(err, "export: create output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return exportGeoJSON(cmd, newDataset(cfg), out)
	},
}

func exportGeoJSON(cmd *cobra.Command, ds *dataset.Service, out io.Writer) error {
	data, err := ds.GeoJSON(cmd.Context())
	if err != nil {
		return eris.Wrap(err, "export")
	}
	if _, err := out.Write(data); err != nil {
		return eris.Wrap(err, "export: write")
	}
	zap.L().Debug("export complete", zap.Int("bytes", len(data)))
	return nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
