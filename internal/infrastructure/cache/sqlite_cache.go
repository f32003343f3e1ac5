package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"txflow/internal/errs"
	"txflow/internal/infrastructure/persistence/gormtx"
	"txflow/internal/infrastructure/persistence/sqlite/model"
	"txflow/internal/ports"
)

// SQLiteCache stores entries in kv_entries. Writes made inside a transaction on the cache's
// data source become visible only if that transaction commits.
type SQLiteCache struct {
	scope *gormtx.Scope
	now   func() time.Time
}

var _ ports.Cache = (*SQLiteCache)(nil)

func NewSQLiteCache(db *gorm.DB, dataSource string) *SQLiteCache {
	return &SQLiteCache{
		scope: gormtx.NewScope(db, dataSource),
		now:   time.Now,
	}
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, bool, error) {
	db, trimmedKey, err := c.prepare(ctx, key)
	if err != nil {
		return "", false, err
	}

	var row model.KVEntry
	if err := db.Where("key = ?", trimmedKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query cache by key")
	}
	if row.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339Nano, row.ExpiresAt)
		if err == nil && !c.now().UTC().Before(expiresAt) {
			return "", false, nil
		}
	}

	return row.Value, true, nil
}

// Set upserts key. A positive ttl expires the entry; zero keeps it until deleted.
func (c *SQLiteCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	db, trimmedKey, err := c.prepare(ctx, key)
	if err != nil {
		return err
	}

	now := c.now().UTC()
	row := model.KVEntry{
		Key:       trimmedKey,
		Value:     value,
		UpdatedAt: now.Format(time.RFC3339Nano),
	}
	if ttl > 0 {
		row.ExpiresAt = now.Add(ttl).Format(time.RFC3339Nano)
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
			"expires_at": row.ExpiresAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert cache key")
	}

	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	db, trimmedKey, err := c.prepare(ctx, key)
	if err != nil {
		return err
	}

	if err := db.Where("key = ?", trimmedKey).Delete(&model.KVEntry{}).Error; err != nil {
		return errs.Wrap(err, "delete cache key")
	}
	return nil
}

func (c *SQLiteCache) prepare(ctx context.Context, key string) (*gorm.DB, string, error) {
	if ctx == nil {
		return nil, "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, "", errs.Wrap(err, "check context")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return nil, "", ports.ErrCacheKeyRequired
	}

	db, err := c.scope.DB(ctx)
	if err != nil {
		return nil, "", err
	}
	return db, trimmedKey, nil
}
