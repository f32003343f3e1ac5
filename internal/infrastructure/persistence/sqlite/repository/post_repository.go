package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"txflow/internal/errs"
	"txflow/internal/infrastructure/persistence/gormtx"
	"txflow/internal/infrastructure/persistence/sqlite/model"
	"txflow/internal/ports"
)

type PostRepository struct {
	scope *gormtx.Scope
}

var _ ports.PostRepository = (*PostRepository)(nil)

// NewPostRepository binds to the transactions of dataSource; "" means the default data source.
func NewPostRepository(db *gorm.DB, dataSource string) *PostRepository {
	return &PostRepository{scope: gormtx.NewScope(db, dataSource)}
}

func (r *PostRepository) Create(ctx context.Context, message string) (ports.Post, error) {
	db, err := r.scope.DB(ctx)
	if err != nil {
		return ports.Post{}, err
	}
	if strings.TrimSpace(message) == "" {
		return ports.Post{}, errors.New("message is required")
	}

	row := model.Post{
		Message:   message,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Post{}, errs.Wrap(err, "insert post")
	}
	return mapPost(row), nil
}

func (r *PostRepository) GetByMessage(ctx context.Context, message string) (ports.Post, error) {
	db, err := r.scope.DB(ctx)
	if err != nil {
		return ports.Post{}, err
	}

	var row model.Post
	if err := db.Where("message = ?", message).Order("post_id asc").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Post{}, ports.ErrPostNotFound
		}
		return ports.Post{}, errs.Wrap(err, "query post by message")
	}
	return mapPost(row), nil
}

func (r *PostRepository) List(ctx context.Context) ([]ports.Post, error) {
	db, err := r.scope.DB(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Post
	if err := db.Order("post_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query posts")
	}

	items := make([]ports.Post, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapPost(row))
	}
	return items, nil
}

func mapPost(row model.Post) ports.Post {
	return ports.Post{
		PostID:    row.PostID,
		Message:   row.Message,
		CreatedAt: row.CreatedAt,
	}
}
