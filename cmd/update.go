package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pipemap/internal/dataset"
)

var updateCmd = &cobra.Command{
	Use:   "update <id> <value>",
	Short: "Set the installation year on every feature with the given id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyUpdate(cmd, newDataset(cfg), args[0], args[1])
	},
}

func applyUpdate(cmd *cobra.Command, ds *dataset.Service, id, value string) error {
	idVal, yearVal := dataset.Value(id), dataset.Value(value)
	n, err := ds.Update(cmd.Context(), dataset.UpdateRequest{ID: &idVal, InstYear: &yearVal})
	if err != nil {
		if dataset.IsNotFound(err) {
			return eris.Errorf("update: no feature with id %q", id)
		}
		return eris.Wrap(err, "update")
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "updated %d feature(s) with id %s\n", n, id)
	return nil
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
