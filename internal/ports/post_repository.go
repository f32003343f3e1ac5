package ports

import (
	"context"
	"errors"
)

var ErrPostNotFound = errors.New("post not found")

type Post struct {
	PostID    uint64
	Message   string
	CreatedAt string
}

type PostAudit struct {
	AuditID   uint64
	Action    string
	Message   string
	TxID      string
	CreatedAt string
}

type PostRepository interface {
	Create(ctx context.Context, message string) (Post, error)
	GetByMessage(ctx context.Context, message string) (Post, error)
	List(ctx context.Context) ([]Post, error)
}

type AuditRepository interface {
	Append(ctx context.Context, audit PostAudit) error
	List(ctx context.Context) ([]PostAudit, error)
}
