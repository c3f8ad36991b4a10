package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ballotscan/internal/bootstrap"
	"ballotscan/internal/ports"
	"ballotscan/internal/usecase/scan"
)

// scanCmd scans one batch from the feeder directory.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a batch of sheets from the feeder directory",
	Args:  cobra.NoArgs,
	RunE: withImporter(func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error {
		ctx := cmd.Context()

		batchID, err := importer.StartImport(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "scanning batch %s\n", batchID)

		if err := importer.WaitForEndOfBatchOrScanningPause(ctx); err != nil {
			return err
		}
		return reportScanOutcome(cmd, importer)
	}),
}

var continueOverride bool

// continueCmd resumes scanning after an adjudication pause.
var continueCmd = &cobra.Command{
	Use:   "continue",
	Short: "Resume scanning after an adjudication pause",
	Args:  cobra.NoArgs,
	RunE: withImporter(func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error {
		ctx := cmd.Context()

		if err := importer.ContinueImport(ctx, continueOverride); err != nil {
			return err
		}
		if err := importer.WaitForEndOfBatchOrScanningPause(ctx); err != nil {
			return err
		}
		return reportScanOutcome(cmd, importer)
	}),
}

func reportScanOutcome(cmd *cobra.Command, importer *scan.Importer) error {
	status, err := importer.GetStatus(cmd.Context())
	if err != nil {
		return err
	}

	switch status.State {
	case scan.StateAwaitingAdjudication:
		fmt.Fprintf(cmd.OutOrStdout(),
			"scanning paused: a sheet needs review (%d remaining); adjudicate it or run 'continue'\n",
			status.Adjudication.Remaining,
		)
	default:
		fmt.Fprintln(cmd.OutOrStdout(), "batch complete")
		for _, batch := range status.Batches {
			if batch.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d sheets (error: %s)\n", batch.Label, batch.SheetCount, batch.Error)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d sheets\n", batch.Label, batch.SheetCount)
			}
		}
	}
	return nil
}

func init() {
	continueCmd.Flags().BoolVar(&continueOverride, "override", false, "Accept the pending sheet as scanned instead of deleting it")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(continueCmd)
}
