package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"ballotscan/internal/bootstrap"
	"ballotscan/internal/bootstrap/logging"
	"ballotscan/internal/errs"
	"ballotscan/internal/ports"
	"ballotscan/internal/usecase/scan"
)

func withApp(run func(cmd *cobra.Command, app *bootstrap.App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var app *bootstrap.App
		return runWithFx(cmd, fx.Populate(&app), func() error {
			return run(cmd, app)
		})
	}
}

// withImporter additionally wires the full scan stack: store, interpreter
// pool, batch scanner, and importer. The importer is started before run and
// stopped after.
func withImporter(run func(cmd *cobra.Command, app *bootstrap.App, store ports.Store, importer *scan.Importer) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var app *bootstrap.App
		var store ports.Store
		var importer *scan.Importer
		return runWithFx(cmd, fx.Populate(&app, &store, &importer), func() error {
			ctx := cmd.Context()

			if err := app.InitSchema(ctx); err != nil {
				return errs.Wrap(err, "initialize schema")
			}
			if err := importer.Start(ctx); err != nil {
				return errs.Wrap(err, "start importer")
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := importer.Stop(stopCtx); err != nil {
					logging.Error(ctx, "importer stop failed", slog.Any("err", errs.Loggable(err)))
				}
			}()

			return run(cmd, app, store, importer)
		})
	}
}

func runWithFx(cmd *cobra.Command, populate fx.Option, run func() error) error {
	ctx := logging.WithAttrs(
		cmd.Context(),
		slog.String("command", cmd.CommandPath()),
		slog.String("config_file", cfgFile),
	)
	cmd.SetContext(ctx)

	fxApp := fx.New(
		bootstrap.Module,
		fx.Provide(func() context.Context { return ctx }),
		fx.Provide(
			fx.Annotate(
				func() string { return cfgFile },
				fx.ResultTags(`name:"configFile"`),
			),
		),
		populate,
	)

	startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
	defer cancelStart()
	if err := fxApp.Start(startCtx); err != nil {
		logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "start fx application")
	}

	defer func() {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelStop()
		if err := fxApp.Stop(stopCtx); err != nil {
			logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
		}
	}()

	if err := run(); err != nil {
		return errs.Wrap(err, "run command")
	}
	return nil
}
