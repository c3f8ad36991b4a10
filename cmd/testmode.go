package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ballotscan/internal/bootstrap"
	"ballotscan/internal/ports"
	"ballotscan/internal/usecase/scan"
)

// testModeCmd switches between test and live ballots. Switching wipes all
// scan data.
var testModeCmd = &cobra.Command{
	Use:       "test-mode <on|off>",
	Short:     "Switch test ballot mode (wipes scan data)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: withImporter(func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error {
		mode := args0(cmd)
		if mode != "on" && mode != "off" {
			return fmt.Errorf("test-mode must be on or off, got %q", mode)
		}

		if err := importer.SetTestMode(cmd.Context(), mode == "on"); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "test mode %s\n", mode)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(testModeCmd)
}
