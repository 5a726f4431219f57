package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/pipemap/internal/crs"
	"github.com/sells-group/pipemap/internal/dataset"
	"github.com/sells-group/pipemap/internal/model"
)

// datasetInfo summarizes a loaded dataset for display.
type datasetInfo struct {
	Path      string
	SourceCRS crs.System
	Kind      model.GeometryKind
	Features  int
	Nulls     int
	Fields    []model.Field
	Bounds    *geom.Bounds
	Files     []string
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe the dataset: schema, CRS, extent and files",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := collectInfo(cmd, newDataset(cfg))
		if err != nil {
			return err
		}
		formatInfo(cmd.OutOrStdout(), info)
		return nil
	},
}

func collectInfo(cmd *cobra.Command, ds *dataset.Service) (datasetInfo, error) {
	sys, err := ds.SourceCRS()
	if err != nil {
		return datasetInfo{}, eris.Wrap(err, "info")
	}
	c, err := ds.Load(cmd.Context())
	if err != nil {
		return datasetInfo{}, eris.Wrap(err, "info")
	}
	files, err := ds.Sidecars()
	if err != nil {
		return datasetInfo{}, eris.Wrap(err, "info")
	}

	info := datasetInfo{
		Path:      ds.Path(),
		SourceCRS: sys,
		Kind:      c.Kind,
		Features:  len(c.Features),
		Fields:    c.Fields,
		Bounds:    geom.NewBounds(geom.XY),
		Files:     files,
	}
	for _, f := range c.Features {
		if f.Geometry == nil {
			info.Nulls++
			continue
		}
		info.Bounds.Extend(f.Geometry)
	}
	return info, nil
}

// formatInfo writes a human-readable summary of info to out.
func formatInfo(out io.Writer, info datasetInfo) {
	_, _ = fmt.Fprintf(out, "Path:      %s\n", info.Path)
	_, _ = fmt.Fprintf(out, "CRS:       %s (served as %s)\n", info.SourceCRS, crs.String(crs.WGS84))
	_, _ = fmt.Fprintf(out, "Geometry:  %s\n", info.Kind)
	_, _ = fmt.Fprintf(out, "Features:  %d (%d without geometry)\n", info.Features, info.Nulls)
	if info.Bounds == nil || info.Bounds.IsEmpty() {
		_, _ = fmt.Fprintln(out, "Extent:    -")
	} else {
		_, _ = fmt.Fprintf(out, "Extent:    %.6f, %.6f, %.6f, %.6f\n",
			info.Bounds.Min(0), info.Bounds.Min(1), info.Bounds.Max(0), info.Bounds.Max(1))
	}

	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tTYPE\tSIZE\tPRECISION")
	_, _ = fmt.Fprintln(w, "-----\t----\t----\t---------")
	for _, f := range info.Fields {
		_, _ = fmt.Fprintf(w, "%s\t%c\t%d\t%d\n", f.Name, f.Type, f.Size, f.Precision)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Files:")
	for _, f := range info.Files {
		_, _ = fmt.Fprintf(out, "  %s\n", filepath.Base(f))
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
