package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"ballotscan/internal/bootstrap/logging"
	"ballotscan/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Scan     ScanConfig     `mapstructure:"scan"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ScanConfig holds the scanning workspace layout and scanner identity.
type ScanConfig struct {
	// WorkspaceDir is the root for scanned and normalized ballot images.
	WorkspaceDir string `mapstructure:"workspace_dir"`
	// IncomingDir is the directory the batch scanner delivers sheet images into.
	IncomingDir string `mapstructure:"incoming_dir"`
	// ScannerID is stamped into every exported cast vote record.
	ScannerID string `mapstructure:"scanner_id"`
	// InterpreterProfile is the path to the interpreter worker profile (TOML).
	InterpreterProfile string `mapstructure:"interpreter_profile"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	if cfg.Scan.WorkspaceDir == "" {
		return Config{}, errors.New("scan.workspace_dir is required")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("workspace_dir", cfg.Scan.WorkspaceDir),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ballotscan")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".ballotscan/state/scan.sqlite")
	v.SetDefault("scan.workspace_dir", ".ballotscan/workspace")
	v.SetDefault("scan.incoming_dir", ".ballotscan/incoming")
	v.SetDefault("scan.scanner_id", "000")
	v.SetDefault("scan.interpreter_profile", "configs/interpreter.toml")
	v.SetDefault("http.addr", "127.0.0.1:8000")
}
