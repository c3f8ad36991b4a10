package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ballotscan/internal/bootstrap"
	"ballotscan/internal/domain/ballot"
	"ballotscan/internal/errs"
	"ballotscan/internal/ports"
	"ballotscan/internal/usecase/scan"
)

// configureCmd loads an election definition into the scanner.
var configureCmd = &cobra.Command{
	Use:   "configure <election.json>",
	Short: "Configure the scanner with an election definition",
	Args:  cobra.ExactArgs(1),
	RunE: withImporter(func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error {
		raw, err := os.ReadFile(args0(cmd))
		if err != nil {
			return errs.Wrap(err, "read election definition")
		}

		var definition ballot.ElectionDefinition
		if err := json.Unmarshal(raw, &definition); err != nil {
			return errs.Wrap(err, "parse election definition")
		}

		if err := importer.Configure(cmd.Context(), &definition); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "configured election: %s\n", definition.Election.Title)
		return nil
	}),
}

// unconfigureCmd wipes all scan data and removes the election.
var unconfigureCmd = &cobra.Command{
	Use:   "unconfigure",
	Short: "Remove the election and delete all scan data",
	Args:  cobra.NoArgs,
	RunE: withImporter(func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error {
		if err := importer.Unconfigure(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "scanner unconfigured")
		return nil
	}),
}

// addTemplatesCmd registers hand-marked ballot layouts.
var addTemplatesCmd = &cobra.Command{
	Use:   "add-templates <templates.json>",
	Short: "Register hand-marked ballot page layouts",
	Args:  cobra.ExactArgs(1),
	RunE: withImporter(func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error {
		raw, err := os.ReadFile(args0(cmd))
		if err != nil {
			return errs.Wrap(err, "read templates")
		}

		var templates []ports.HmpbTemplate
		if err := json.Unmarshal(raw, &templates); err != nil {
			return errs.Wrap(err, "parse templates")
		}

		if err := importer.AddHmpbTemplates(cmd.Context(), templates); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %d templates\n", len(templates))
		return nil
	}),
}

// args0 returns the first positional argument of the current invocation.
func args0(cmd *cobra.Command) string {
	return cmd.Flags().Args()[0]
}

func init() {
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(unconfigureCmd)
	rootCmd.AddCommand(addTemplatesCmd)
}
