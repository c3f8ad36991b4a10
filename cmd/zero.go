package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ballotscan/internal/bootstrap"
	"ballotscan/internal/errs"
	"ballotscan/internal/ports"
	"ballotscan/internal/usecase/scan"
)

// zeroCmd deletes all scanned data, keeping the election configuration.
var zeroCmd = &cobra.Command{
	Use:   "zero",
	Short: "Delete all batches and sheets",
	Args:  cobra.NoArgs,
	RunE: withImporter(func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error {
		if err := importer.DoZero(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "scan data zeroed")
		return nil
	}),
}

var backupOutput string

// backupCmd snapshots the scan database.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a consistent snapshot of the scan database",
	Args:  cobra.NoArgs,
	RunE: withImporter(func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error {
		if backupOutput == "" {
			return errs.Wrap(fmt.Errorf("missing --output"), "backup")
		}
		if err := store.Backup(cmd.Context(), backupOutput); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "database backed up to %s\n", backupOutput)
		return nil
	}),
}

func init() {
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Backup destination path")
	rootCmd.AddCommand(zeroCmd)
	rootCmd.AddCommand(backupCmd)
}
