package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"txflow/internal/infrastructure/persistence/gormtx"
	"txflow/internal/infrastructure/persistence/sqlite/model"
	"txflow/internal/ports"
	"txflow/internal/transactional"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "posts.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
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
	if err := db.AutoMigrate(&model.Post{}, &model.PostAudit{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func TestPostRepositoryWithoutTransaction(t *testing.T) {
	repo := NewPostRepository(setupDB(t), "")
	ctx := context.Background()

	created, err := repo.Create(ctx, "hello")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.PostID == 0 || created.CreatedAt == "" {
		t.Fatalf("Create() = %+v", created)
	}

	got, err := repo.GetByMessage(ctx, "hello")
	if err != nil {
		t.Fatalf("GetByMessage() error = %v", err)
	}
	if got.PostID != created.PostID {
		t.Fatalf("GetByMessage() = %+v, want id %d", got, created.PostID)
	}

	if _, err := repo.GetByMessage(ctx, "missing"); !errors.Is(err, ports.ErrPostNotFound) {
		t.Fatalf("GetByMessage(missing) error = %v", err)
	}
	if _, err := repo.Create(ctx, "  "); err == nil {
		t.Fatalf("Create() expected error for empty message")
	}
}

func TestPostRepositoryFollowsTransaction(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db, "")
	m := transactional.NewManager(
		transactional.WithDataSourceRegistered(transactional.DefaultDataSource, gormtx.NewDataSource(db)),
	)
	failure := errors.New("abort")

	err := m.Run(context.Background(), func(ctx context.Context) error {
		if _, err := repo.Create(ctx, "rolled back"); err != nil {
			return err
		}
		posts, err := repo.List(ctx)
		if err != nil {
			return err
		}
		if len(posts) != 1 {
			t.Fatalf("List() inside transaction = %d posts, want 1", len(posts))
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Run() error = %v", err)
	}

	posts, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("List() after rollback = %+v", posts)
	}
}

func TestAuditRepositoryAppendAndList(t *testing.T) {
	db := setupDB(t)
	audits := NewAuditRepository(db, transactional.DefaultDataSource)
	m := transactional.NewManager(
		transactional.WithDataSourceRegistered(transactional.DefaultDataSource, gormtx.NewDataSource(db)),
	)

	err := m.Run(context.Background(), func(ctx context.Context) error {
		return audits.Append(ctx, ports.PostAudit{
			Action:  "publish",
			Message: "hello",
			TxID:    transactional.Current(ctx).ID(),
		})
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := audits.Append(context.Background(), ports.PostAudit{}); err == nil {
		t.Fatalf("Append() expected error for empty action")
	}

	items, err := audits.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 1 || items[0].Action != "publish" || items[0].TxID == "" || items[0].CreatedAt == "" {
		t.Fatalf("List() = %+v", items)
	}
}

func TestRepositoryRejectsFinishedTransaction(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db, "")
	m := transactional.NewManager(
		transactional.WithDataSourceRegistered(transactional.DefaultDataSource, gormtx.NewDataSource(db)),
	)

	var leaked context.Context
	if err := m.Run(context.Background(), func(ctx context.Context) error {
		leaked = ctx
		return nil
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, err := repo.Create(leaked, "late"); !errors.Is(err, transactional.ErrTransactionDone) {
		t.Fatalf("Create() on finished transaction error = %v", err)
	}
}
