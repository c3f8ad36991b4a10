package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"ballotscan/internal/bootstrap"
	"ballotscan/internal/errs"
	"ballotscan/internal/ports"
	"ballotscan/internal/usecase/scan"
)

// statusCmd prints the importer status as JSON.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show batches and adjudication progress",
	Args:  cobra.NoArgs,
	RunE: withImporter(func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error {
		status, err := importer.GetStatus(cmd.Context())
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(status); err != nil {
			return errs.Wrap(err, "write status")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
