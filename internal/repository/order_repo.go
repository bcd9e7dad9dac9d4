package repository

import (
	"context"
	"errors"

	"restopos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

func byPosition(db *gorm.DB) *gorm.DB  { return db.Order("position ASC") }
func byCreatedAt(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }

func (r *orderRepo) Create(ctx context.Context, o *model.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(o).Error; err != nil {
			return err
		}
		return saveChildren(tx, o)
	})
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", byPosition).
		Preload("Payments", byCreatedAt).
		Preload("Refunds", byCreatedAt).
		First(&o, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *orderRepo) Save(ctx context.Context, o *model.Order) error {
	prev := o.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o.Version = prev + 1
		res := tx.Model(o).
			Where("version = ?", prev).
			Select("*").
			Omit("id", "created_at", clause.Associations).
			Updates(o)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return saveChildren(tx, o)
	})
	if err != nil {
		o.Version = prev
	}
	return err
}

// saveChildren upserts lines, payments and refunds. Rows are never deleted:
// a line moved to another order is rewritten with the new order_id when the
// destination is saved. Each slice gets its own statement; a chain reused
// across Create calls keeps the first call's model and table.
func saveChildren(tx *gorm.DB, o *model.Order) error {
	upsert := func(rows any) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(rows).Error
	}
	if len(o.Lines) > 0 {
		for i := range o.Lines {
			o.Lines[i].OrderID = o.ID
		}
		if err := upsert(&o.Lines); err != nil {
			return err
		}
	}
	if len(o.Payments) > 0 {
		if err := upsert(&o.Payments); err != nil {
			return err
		}
	}
	if len(o.Refunds) > 0 {
		if err := upsert(&o.Refunds); err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepo) List(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{})
	if f.BranchID != nil {
		q = q.Where("branch_id = ?", *f.BranchID)
	}
	if f.ShiftID != nil {
		q = q.Where("shift_id = ?", *f.ShiftID)
	}
	if f.TableID != nil {
		q = q.Where("table_id = ?", *f.TableID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.CreatedBefore != nil {
		q = q.Where("created_at < ?", *f.CreatedBefore)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var orders []model.Order
	err := q.
		Preload("Lines", byPosition).
		Preload("Payments", byCreatedAt).
		Preload("Refunds", byCreatedAt).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) NextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int, error) {
	// Row-level upsert on order_counters: concurrent callers serialize on the
	// counter row, and the number is released with the surrounding tx.
	var num int
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO order_counters (restaurant_id, last_number) VALUES (?, 1)
		ON CONFLICT (restaurant_id) DO UPDATE SET last_number = order_counters.last_number + 1
		RETURNING last_number`, restaurantID).Scan(&num).Error
	return num, err
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
