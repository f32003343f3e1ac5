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

type AuditRepository struct {
	scope *gormtx.Scope
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

func NewAuditRepository(db *gorm.DB, dataSource string) *AuditRepository {
	return &AuditRepository{scope: gormtx.NewScope(db, dataSource)}
}

func (r *AuditRepository) Append(ctx context.Context, audit ports.PostAudit) error {
	db, err := r.scope.DB(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(audit.Action) == "" {
		return errors.New("audit action is required")
	}

	createdAt := strings.TrimSpace(audit.CreatedAt)
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	row := model.PostAudit{
		Action:    audit.Action,
		Message:   audit.Message,
		TxID:      audit.TxID,
		CreatedAt: createdAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert post audit")
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context) ([]ports.PostAudit, error) {
	db, err := r.scope.DB(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.PostAudit
	if err := db.Order("audit_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query post audits")
	}

	items := make([]ports.PostAudit, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.PostAudit{
			AuditID:   row.AuditID,
			Action:    row.Action,
			Message:   row.Message,
			TxID:      row.TxID,
			CreatedAt: row.CreatedAt,
		})
	}
	return items, nil
}
