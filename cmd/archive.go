package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pipemap/internal/dataset"
)

var archiveOut string

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Package the shapefile and its sidecars into a ZIP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds := newDataset(cfg)
		path := archiveOut
		if path == "" {
			path = ds.ArchiveName()
		}
		return writeArchive(cmd, ds, path)
	},
}

func writeArchive(cmd *cobra.Command, ds *dataset.Service, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "archive: create output")
	}
	if err := ds.Archive(cmd.Context(), f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return eris.Wrap(err, "archive")
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "archive: close output")
	}
	zap.L().Info("archive written", zap.String("path", path))
	return nil
}

func init() {
	archiveCmd.Flags().StringVarP(&archiveOut, "out", "o", "", "output file (default <dataset>.zip)")
	rootCmd.AddCommand(archiveCmd)
}
