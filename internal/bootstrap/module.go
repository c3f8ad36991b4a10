package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"ballotscan/internal/bootstrap/config"
	"ballotscan/internal/bootstrap/database"
	"ballotscan/internal/bootstrap/logging"
	sqliterepo "ballotscan/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "ballotscan/internal/infrastructure/persistence/sqlite/uow"
	"ballotscan/internal/infrastructure/scanner"
	"ballotscan/internal/interpret"
	"ballotscan/internal/ports"
	"ballotscan/internal/usecase/scan"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideStore),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideProfile),
	fx.Provide(provideInterpreterClient),
	fx.Provide(provideBatchScanner),
	fx.Provide(provideImporter),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
		DBPath: cfg.Database.DSN,
	}
}

func provideStore(cfg config.Config, db *gorm.DB) ports.Store {
	return sqliterepo.NewScanStore(db, cfg.Scan.ScannerID)
}

func provideProfile(cfg config.Config) (interpret.Profile, error) {
	return interpret.LoadProfile(cfg.Scan.InterpreterProfile)
}

func provideInterpreterClient(profile interpret.Profile) (interpret.Client, error) {
	return interpret.NewClient(profile)
}

func provideBatchScanner(cfg config.Config) (ports.BatchScanner, error) {
	batchScanner, err := scanner.NewDirectoryScanner(cfg.Scan.IncomingDir)
	if err != nil {
		return nil, err
	}
	return batchScanner, nil
}

func provideImporter(
	store ports.Store,
	unit ports.UnitOfWork,
	client interpret.Client,
	batchScanner ports.BatchScanner,
	profile interpret.Profile,
) (*scan.Importer, error) {
	return scan.NewImporter(store, unit, client, batchScanner, ports.MarkThresholds{
		Marginal: profile.Thresholds.Marginal,
		Definite: profile.Thresholds.Definite,
	})
}
