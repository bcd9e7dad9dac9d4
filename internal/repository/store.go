package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormStore struct{ db *gorm.DB }

// NewStore returns the PostgreSQL-backed Store.
func NewStore(db *gorm.DB) Store { return &gormStore{db: db} }

func (s *gormStore) Orders() OrderRepository     { return NewOrderRepository(s.db) }
func (s *gormStore) Shifts() ShiftRepository     { return NewShiftRepository(s.db) }
func (s *gormStore) Receipts() ReceiptRepository { return NewReceiptRepository(s.db) }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// LockTable takes a transaction-scoped advisory lock keyed on the table id.
// Outside a transaction the lock is released as soon as the statement ends.
func (s *gormStore) LockTable(ctx context.Context, tableID uuid.UUID) error {
	return s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "table:"+tableID.String()).Error
}
