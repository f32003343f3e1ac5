package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"txflow/internal/bootstrap/config"
	"txflow/internal/bootstrap/database"
	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
	cacheinfra "txflow/internal/infrastructure/cache"
	"txflow/internal/infrastructure/persistence/gormtx"
	sqliterepo "txflow/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "txflow/internal/infrastructure/persistence/sqlite/uow"
	"txflow/internal/ports"
	"txflow/internal/transactional"
	"txflow/internal/usecase/post"
	"txflow/internal/usecase/scenario"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideManager),
	fx.Provide(provideApp),
	fx.Provide(provideRunner),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(providePostRepository),
	fx.Provide(provideAuditRepository),
	fx.Provide(provideCache),
	fx.Provide(post.NewService),
	fx.Provide(scenario.NewRunner),
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

// provideManager installs the process-wide manager with the gorm database as the default data
// source plus every configured extra one.
func provideManager(lc fx.Lifecycle, ctx context.Context, cfg config.Config, db *gorm.DB) (*transactional.Manager, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	defaults, err := cfg.Transaction.Options()
	if err != nil {
		return nil, err
	}
	m := transactional.Initialize(
		transactional.WithDataSourceRegistered(transactional.DefaultDataSource, gormtx.NewDataSource(db)),
		transactional.WithDefaults(defaults...),
	)

	for _, name := range cfg.DataSourceNames() {
		ds, closeFn, err := database.OpenDataSource(logCtx, name, cfg.DataSources[name])
		if err != nil {
			return nil, errs.Wrapf(err, "open data source %q", name)
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return closeFn()
			},
		})
		if err := m.Register(name, ds); err != nil {
			return nil, err
		}
	}

	logging.Info(logCtx, "transaction manager initialized", slog.Any("data_sources", m.DataSources()))
	return m, nil
}

func provideRunner(m *transactional.Manager) transactional.Runner {
	return m
}

func provideApp(cfg config.Config, db *gorm.DB, m *transactional.Manager) *App {
	return &App{
		Config:  cfg,
		DB:      db,
		Manager: m,
	}
}

func providePostRepository(db *gorm.DB) ports.PostRepository {
	return sqliterepo.NewPostRepository(db, transactional.DefaultDataSource)
}

func provideAuditRepository(db *gorm.DB) ports.AuditRepository {
	return sqliterepo.NewAuditRepository(db, transactional.DefaultDataSource)
}

func provideCache(db *gorm.DB) ports.Cache {
	return cacheinfra.NewSQLiteCache(db, transactional.DefaultDataSource)
}
