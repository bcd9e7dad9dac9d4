package repository

import (
	"context"

	"restopos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type shiftRepo struct{ db *gorm.DB }

func NewShiftRepository(db *gorm.DB) ShiftRepository { return &shiftRepo{db: db} }

func (r *shiftRepo) Create(ctx context.Context, s *model.Shift) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(s).Error)
}

func (r *shiftRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).Preload("Movements", byCreatedAt).First(&s, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *shiftRepo) FindLocked(ctx context.Context, id uuid.UUID, mode LockMode) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: string(mode)}).
		Preload("Movements", byCreatedAt).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *shiftRepo) FindOpenByCashier(ctx context.Context, branchID, cashierID uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND cashier_id = ? AND status = ?", branchID, cashierID, model.ShiftOpen).
		First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *shiftRepo) ListOpenByBranch(ctx context.Context, branchID uuid.UUID) ([]model.Shift, error) {
	var shifts []model.Shift
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND status = ?", branchID, model.ShiftOpen).
		Order("opened_at ASC").
		Find(&shifts).Error
	return shifts, err
}

func (r *shiftRepo) Save(ctx context.Context, s *model.Shift) error {
	prev := s.Version
	s.Version = prev + 1
	res := r.db.WithContext(ctx).Model(s).
		Where("version = ?", prev).
		Select("*").
		Omit("id", "opened_at", clause.Associations).
		Updates(s)
	if res.Error != nil {
		s.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		s.Version = prev
		return ErrVersionConflict
	}
	return nil
}

func (r *shiftRepo) AddMovement(ctx context.Context, m *model.CashMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *shiftRepo) ListClosed(ctx context.Context, branchID, cashierID uuid.UUID, page, limit int) ([]model.Shift, int64, error) {
	var shifts []model.Shift
	var total int64
	q := r.db.WithContext(ctx).Model(&model.Shift{}).
		Where("branch_id = ? AND cashier_id = ? AND status = ?", branchID, cashierID, model.ShiftClosed)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("closed_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&shifts).Error
	return shifts, total, err
}

type methodSum struct {
	Method model.PaymentMethod
	Total  decimal.Decimal
}

func (r *shiftRepo) Totals(ctx context.Context, shiftID uuid.UUID) (*ShiftTotals, error) {
	db := r.db.WithContext(ctx)
	out := NewShiftTotals()

	var pays []methodSum
	err := db.Raw(`
		SELECT p.method, COALESCE(SUM(p.amount), 0) AS total
		FROM payments p JOIN orders o ON o.id = p.order_id
		WHERE o.shift_id = ? AND o.status = ? AND p.reversed = false
		GROUP BY p.method`, shiftID, model.OrderPaid).Scan(&pays).Error
	if err != nil {
		return nil, err
	}
	for _, p := range pays {
		out.Payments[p.Method] = p.Total
	}

	var refunds []methodSum
	err = db.Raw(`
		SELECT rf.method, COALESCE(SUM(rf.amount), 0) AS total
		FROM refunds rf JOIN orders o ON o.id = rf.order_id
		WHERE o.shift_id = ?
		GROUP BY rf.method`, shiftID).Scan(&refunds).Error
	if err != nil {
		return nil, err
	}
	for _, rf := range refunds {
		out.Refunds[rf.Method] = rf.Total
	}

	var movements decimal.Decimal
	err = db.Raw(`SELECT COALESCE(SUM(amount), 0) FROM cash_movements WHERE shift_id = ?`, shiftID).
		Scan(&movements).Error
	if err != nil {
		return nil, err
	}
	out.Movements = movements

	var counts []struct {
		Status model.OrderStatus
		N      int
	}
	err = db.Raw(`SELECT status, COUNT(*) AS n FROM orders WHERE shift_id = ? GROUP BY status`, shiftID).
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		out.OrderCounts[c.Status] = c.N
	}
	return out, nil
}
