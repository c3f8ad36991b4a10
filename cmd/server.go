package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"ballotscan/internal/bootstrap"
	"ballotscan/internal/bootstrap/logging"
	"ballotscan/internal/errs"
	"ballotscan/internal/httpapi"
	"ballotscan/internal/infrastructure/scanner"
	"ballotscan/internal/ports"
	"ballotscan/internal/usecase/scan"
)

var serverWatch bool

// serverCmd runs the HTTP API, optionally watching the feeder directory to
// start batches automatically.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the scan HTTP API",
	Args:  cobra.NoArgs,
	RunE: withImporter(func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error {
		ctx := cmd.Context()

		server, err := httpapi.NewServer(importer, store)
		if err != nil {
			return errs.Wrap(err, "build http server")
		}

		if serverWatch {
			go func() {
				err := scanner.Watch(ctx, app.Config.Scan.IncomingDir, func(ctx context.Context) {
					if _, err := importer.StartImport(ctx); err != nil {
						logging.Warn(ctx, "auto-start batch", slog.String("error", err.Error()))
					}
				})
				if err != nil {
					logging.Warn(ctx, "feeder watch stopped", slog.String("error", err.Error()))
				}
			}()
		}

		return server.ListenAndServe(ctx, app.Config.HTTP.Addr)
	}),
}

func init() {
	serverCmd.Flags().BoolVar(&serverWatch, "watch", false, "Start a batch when files land in the feeder directory")
	rootCmd.AddCommand(serverCmd)
}
