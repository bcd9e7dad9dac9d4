package repository

import (
	"context"

	"restopos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type auditRepo struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) AuditRepository { return &auditRepo{db: db} }

func (r *auditRepo) Create(ctx context.Context, e *model.AuditEntry) error {
	return translate(r.db.WithContext(ctx).Create(e).Error)
}

func (r *auditRepo) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]model.AuditEntry, error) {
	var out []model.AuditEntry
	err := r.db.WithContext(ctx).Where("entity_id = ?", entityID).Order("at ASC").Find(&out).Error
	return out, err
}
