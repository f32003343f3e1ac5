package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"txflow/internal/bootstrap/config"
	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
	"txflow/internal/infrastructure/persistence/sqlite/model"
	"txflow/internal/transactional"
)

type App struct {
	Config  config.Config
	DB      *gorm.DB
	Manager *transactional.Manager
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(
		&model.Post{},
		&model.PostAudit{},
		&model.KVEntry{},
	); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}
