package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"txflow/internal/bootstrap/config"
	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
)

// sqliteBusyTimeout lets a requires_new transaction wait for a sibling connection's lock
// instead of failing with SQLITE_BUSY straight away.
const sqliteBusyTimeout = 5 * time.Second

// Open opens the gorm handle behind the default data source.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.database"))

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver != config.DriverSQLite && driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err := ensureSQLiteDirectory(logCtx, cfg.DSN); err != nil {
		return nil, errs.Wrap(err, "ensure sqlite directory")
	}

	dsn := withSQLitePragmas(cfg.DSN)
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, errs.Wrap(err, "open sqlite db")
	}
	logging.Info(logCtx, "database opened", slog.String("driver", config.DriverSQLite), slog.String("dsn", dsn))
	return db, nil
}

// withSQLitePragmas appends the busy timeout unless the DSN already sets one.
func withSQLitePragmas(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || dsn == ":memory:" || strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", dsn, sep, sqliteBusyTimeout.Milliseconds())
}

// sqliteFilePath strips the file: scheme and query from a sqlite DSN; "" for in-memory databases.
func sqliteFilePath(dsn string) string {
	candidate := strings.TrimSpace(dsn)
	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = candidate[len("file:"):]
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}
	if candidate == "" || strings.HasPrefix(candidate, ":memory:") {
		return ""
	}
	return candidate
}

func ensureSQLiteDirectory(ctx context.Context, dsn string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	path := sqliteFilePath(dsn)
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create sqlite directory %q", dir)
	}

	logging.Debug(ctx, "sqlite directory ensured", slog.String("dir", dir))
	return nil
}
