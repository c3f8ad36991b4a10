package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ballotscan/internal/bootstrap"
	"ballotscan/internal/errs"
	"ballotscan/internal/ports"
	"ballotscan/internal/usecase/scan"
)

var exportOutput string

// exportCmd writes all cast vote records as newline-delimited JSON.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cast vote records",
	Args:  cobra.NoArgs,
	RunE: withImporter(func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error {
		out := cmd.OutOrStdout()
		if exportOutput != "" {
			file, err := os.Create(exportOutput)
			if err != nil {
				return errs.Wrap(err, "create export file")
			}
			defer file.Close()
			out = file
		}

		if err := store.ExportCvrs(cmd.Context(), out); err != nil {
			return err
		}
		if exportOutput != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "exported cast vote records to %s\n", exportOutput)
		}
		return nil
	}),
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
