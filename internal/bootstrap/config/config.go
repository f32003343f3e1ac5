package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
	"txflow/internal/transactional"
)

const (
	DriverSQLite   = "sqlite"
	DriverSQL      = "sql"
	DriverPostgres = "postgres"
)

type Config struct {
	App         AppConfig                   `mapstructure:"app"`
	Log         LogConfig                   `mapstructure:"log"`
	Database    DatabaseConfig              `mapstructure:"database"`
	DataSources map[string]DataSourceConfig `mapstructure:"datasources"`
	Transaction TransactionConfig           `mapstructure:"transaction"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// DataSourceConfig describes an extra named data source. DriverName selects the
// database/sql driver when Driver is "sql".
type DataSourceConfig struct {
	Driver       string `mapstructure:"driver"`
	DriverName   string `mapstructure:"driver_name"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type TransactionConfig struct {
	Propagation string `mapstructure:"propagation"`
	Isolation   string `mapstructure:"isolation"`
}

// Options turns the configured defaults into manager options.
func (c TransactionConfig) Options() ([]transactional.Option, error) {
	propagation, err := transactional.ParsePropagation(c.Propagation)
	if err != nil {
		return nil, errs.Wrap(err, "transaction.propagation")
	}
	isolation, err := transactional.ParseIsolation(c.Isolation)
	if err != nil {
		return nil, errs.Wrap(err, "transaction.isolation")
	}
	return []transactional.Option{
		transactional.WithPropagation(propagation),
		transactional.WithIsolation(isolation),
	}, nil
}

// DataSourceNames returns the configured extra data sources in a stable order.
func (c Config) DataSourceNames() []string {
	names := make([]string, 0, len(c.DataSources))
	for name := range c.DataSources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
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

	v.SetEnvPrefix("TXF")
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
	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Int("extra_datasources", len(cfg.DataSources)),
	)

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if _, err := cfg.Transaction.Options(); err != nil {
		return err
	}
	for _, name := range cfg.DataSourceNames() {
		ds := cfg.DataSources[name]
		if name == transactional.DefaultDataSource {
			return fmt.Errorf("datasources.%s: name is reserved for database", name)
		}
		if strings.TrimSpace(ds.DSN) == "" {
			return fmt.Errorf("datasources.%s.dsn is required", name)
		}
		switch strings.ToLower(strings.TrimSpace(ds.Driver)) {
		case DriverSQLite, DriverPostgres:
		case DriverSQL:
			if strings.TrimSpace(ds.DriverName) == "" {
				return fmt.Errorf("datasources.%s.driver_name is required for driver %q", name, DriverSQL)
			}
		default:
			return fmt.Errorf("datasources.%s: unsupported driver %q", name, ds.Driver)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "txflow")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".txflow/txflow.sqlite")
	v.SetDefault("transaction.propagation", "required")
	v.SetDefault("transaction.isolation", "default")
}
