package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	"txflow/internal/bootstrap/config"
	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
	"txflow/internal/infrastructure/persistence/gormtx"
	"txflow/internal/infrastructure/persistence/pgxtx"
	"txflow/internal/infrastructure/persistence/sqlxtx"
	"txflow/internal/transactional"
)

// Closer releases the pool behind a data source.
type Closer func() error

// OpenDataSource builds the transactional data source described by cfg.
func OpenDataSource(ctx context.Context, name string, cfg config.DataSourceConfig) (transactional.DataSource, Closer, error) {
	if ctx == nil {
		return nil, nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.database"), slog.String("data_source", name))

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case config.DriverSQLite:
		db, err := Open(logCtx, config.DatabaseConfig{Driver: config.DriverSQLite, DSN: cfg.DSN})
		if err != nil {
			return nil, nil, err
		}
		applyPoolLimits(db, cfg.MaxOpenConns)
		return gormtx.NewDataSource(db), closeGorm(db), nil

	case config.DriverSQL:
		if isSQLiteDriver(cfg.DriverName) {
			if err := ensureSQLiteDirectory(logCtx, cfg.DSN); err != nil {
				return nil, nil, errs.Wrap(err, "ensure sqlite directory")
			}
		}
		db, err := sqlx.Open(cfg.DriverName, cfg.DSN)
		if err != nil {
			return nil, nil, errs.Wrapf(err, "open %s db", cfg.DriverName)
		}
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		logging.Info(logCtx, "data source opened", slog.String("driver", cfg.DriverName))
		return sqlxtx.NewDataSource(db), db.Close, nil

	case config.DriverPostgres:
		pool, err := pgxtx.Open(logCtx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		logging.Info(logCtx, "data source opened", slog.String("driver", "postgres"))
		return pgxtx.NewDataSource(pool), func() error {
			pool.Close()
			return nil
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported data source driver %q", cfg.Driver)
	}
}

func isSQLiteDriver(driverName string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(driverName)), "sqlite")
}

func applyPoolLimits(db *gorm.DB, maxOpen int) {
	if maxOpen <= 0 {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
}

func closeGorm(db *gorm.DB) Closer {
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
}
