package cmd

import (
	"github.com/spf13/cobra"

	"ballotscan/internal/interpret"
)

// workerCmd runs one interpreter worker over stdin/stdout. The scan pipeline
// spawns these when the interpreter profile selects the process transport.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run an interpreter worker process",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return interpret.ServeWorker(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
