package repository

import (
	"context"

	"restopos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type receiptRepo struct{ db *gorm.DB }

func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepo{db: db}
}

func (r *receiptRepo) Create(ctx context.Context, rc *model.Receipt) error {
	return translate(r.db.WithContext(ctx).Create(rc).Error)
}

func (r *receiptRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Receipt, error) {
	var rc model.Receipt
	if err := r.db.WithContext(ctx).First(&rc, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &rc, nil
}

func (r *receiptRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Receipt, error) {
	var out []model.Receipt
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *receiptRepo) Update(ctx context.Context, rc *model.Receipt) error {
	return r.db.WithContext(ctx).Save(rc).Error
}

func (r *receiptRepo) ListFailed(ctx context.Context, maxRetries, limit int) ([]model.Receipt, error) {
	var out []model.Receipt
	err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", model.ReceiptError, maxRetries).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
