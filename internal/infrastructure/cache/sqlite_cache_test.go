package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"txflow/internal/infrastructure/persistence/gormtx"
	"txflow/internal/infrastructure/persistence/sqlite/model"
	"txflow/internal/ports"
	"txflow/internal/transactional"
)

func setupSQLiteCache(t *testing.T) (*SQLiteCache, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "cache.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&model.KVEntry{}); err != nil {
		t.Fatalf("auto migrate kv_entries: %v", err)
	}

	return NewSQLiteCache(db, ""), db
}

func TestSQLiteCacheSetGetDelete(t *testing.T) {
	cache, _ := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "post:hello", "1", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := cache.Get(ctx, "post:hello")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatalf("Get() expected found=true")
	}
	if value != "1" {
		t.Fatalf("Get() value = %q", value)
	}

	if err := cache.Set(ctx, "post:hello", "2", 0); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}

	value, found, err = cache.Get(ctx, "post:hello")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "2" {
		t.Fatalf("Get() after update = %q, found=%v", value, found)
	}

	if err := cache.Delete(ctx, "post:hello"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, found, err = cache.Get(ctx, "post:hello")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if found {
		t.Fatalf("Get() expected found=false after delete")
	}
}

func TestSQLiteCacheExpiresEntries(t *testing.T) {
	cache, _ := setupSQLiteCache(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if err := cache.Set(ctx, "session", "v", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, found, err := cache.Get(ctx, "session"); err != nil || !found {
		t.Fatalf("Get() before expiry found=%v err=%v", found, err)
	}

	now = now.Add(time.Minute)
	if _, found, err := cache.Get(ctx, "session"); err != nil || found {
		t.Fatalf("Get() after expiry found=%v err=%v", found, err)
	}
}

func TestSQLiteCacheWritesFollowTransaction(t *testing.T) {
	cache, db := setupSQLiteCache(t)
	m := transactional.NewManager(
		transactional.WithDataSourceRegistered(transactional.DefaultDataSource, gormtx.NewDataSource(db)),
	)
	failure := errors.New("abort")

	err := m.Run(context.Background(), func(ctx context.Context) error {
		if err := cache.Set(ctx, "draft", "v", 0); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Run() error = %v", err)
	}

	if _, found, err := cache.Get(context.Background(), "draft"); err != nil || found {
		t.Fatalf("Get() after rollback found=%v err=%v", found, err)
	}
}

func TestSQLiteCacheRejectsEmptyKey(t *testing.T) {
	cache, _ := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "", "v", 0); !errors.Is(err, ports.ErrCacheKeyRequired) {
		t.Fatalf("Set() expected error for empty key")
	}
	if _, _, err := cache.Get(ctx, " "); !errors.Is(err, ports.ErrCacheKeyRequired) {
		t.Fatalf("Get() expected error for empty key")
	}
	if err := cache.Delete(ctx, ""); err == nil {
		t.Fatalf("Delete() expected error for empty key")
	}
}
