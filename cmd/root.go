package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pipemap/internal/config"
	"github.com/sells-group/pipemap/internal/dataset"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pipemap",
	Short: "Pipe asset map server",
	Long:  "Serves a pipe-network shapefile as GeoJSON for a browser map, applies installation-year edits and packages the files for download.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// newDataset builds the dataset service from the loaded config.
func newDataset(c *config.Config) *dataset.Service {
	return dataset.New(dataset.Config{
		Path:       c.Dataset.Path,
		IDField:    c.Dataset.IDField,
		YearField:  c.Dataset.YearField,
		SourceEPSG: c.Dataset.SourceEPSG,
		Encoding:   c.Dataset.Encoding,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
