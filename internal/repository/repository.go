package repository

import (
	"context"
	"errors"
	"time"

	"restopos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by Save when the row changed since it was
	// loaded. The caller should reload and retry.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate is returned when a unique constraint rejects the write.
	ErrDuplicate = errors.New("duplicate key")
)

// Store groups the repositories that take part in one unit of work.
// Services depend on this interface, not on the concrete GORM implementation,
// so the unit tests can run against the in-memory store.
type Store interface {
	Orders() OrderRepository
	Shifts() ShiftRepository
	Receipts() ReceiptRepository

	// Transaction runs fn against a Store bound to a single transaction.
	// Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	// LockTable serializes occupancy decisions for one table until the
	// surrounding transaction ends.
	LockTable(ctx context.Context, tableID uuid.UUID) error
}

// OrderFilter narrows List. Zero fields are ignored.
type OrderFilter struct {
	BranchID      *uuid.UUID
	ShiftID       *uuid.UUID
	TableID       *uuid.UUID
	Statuses      []model.OrderStatus
	CreatedBefore *time.Time
	Limit         int
}

// OrderRepository persists the Order aggregate together with its lines,
// payments and refunds.
type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// Save writes o only if its Version still matches the stored row, then
	// bumps o.Version. Lines, payments and refunds are upserted.
	Save(ctx context.Context, o *model.Order) error
	// List returns whole aggregates, payments and refunds included, oldest
	// first.
	List(ctx context.Context, filter OrderFilter) ([]model.Order, error)
	// NextOrderNumber returns the next sequential number for a restaurant.
	NextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int, error)
}

// ShiftTotals are the figures the reconciliation re-sums on every report.
type ShiftTotals struct {
	// Payments per method: non-reversed payments on paid orders of the shift.
	Payments map[model.PaymentMethod]decimal.Decimal
	// Refunds per method against orders of the shift.
	Refunds map[model.PaymentMethod]decimal.Decimal
	// Movements is the signed sum of cash movements.
	Movements   decimal.Decimal
	OrderCounts map[model.OrderStatus]int
}

// LockMode is the row lock taken by ShiftRepository.FindLocked.
type LockMode string

const (
	// LockShare is held by writes that need the shift to stay open until
	// they commit. Any number of them run side by side.
	LockShare LockMode = "SHARE"
	// LockUpdate is held by the close. It waits for every LockShare holder
	// and keeps new ones out until it commits.
	LockUpdate LockMode = "UPDATE"
)

type ShiftRepository interface {
	Create(ctx context.Context, s *model.Shift) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	// FindLocked is FindByID holding a row lock until the surrounding
	// transaction ends.
	FindLocked(ctx context.Context, id uuid.UUID, mode LockMode) (*model.Shift, error)
	FindOpenByCashier(ctx context.Context, branchID, cashierID uuid.UUID) (*model.Shift, error)
	ListOpenByBranch(ctx context.Context, branchID uuid.UUID) ([]model.Shift, error)
	// Save is versioned like OrderRepository.Save.
	Save(ctx context.Context, s *model.Shift) error
	AddMovement(ctx context.Context, m *model.CashMovement) error
	ListClosed(ctx context.Context, branchID, cashierID uuid.UUID, page, limit int) ([]model.Shift, int64, error)
	Totals(ctx context.Context, shiftID uuid.UUID) (*ShiftTotals, error)
}

type ReceiptRepository interface {
	Create(ctx context.Context, r *model.Receipt) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Receipt, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Receipt, error)
	Update(ctx context.Context, r *model.Receipt) error
	// ListFailed returns receipts in error status that have been retried
	// fewer than maxRetries times, oldest first.
	ListFailed(ctx context.Context, maxRetries, limit int) ([]model.Receipt, error)
}

// MenuRepository is the read-only menu lookup.
type MenuRepository interface {
	FindItem(ctx context.Context, restaurantID, itemID uuid.UUID) (*model.MenuItem, error)
}

type AuditRepository interface {
	Create(ctx context.Context, e *model.AuditEntry) error
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]model.AuditEntry, error)
}

// NewShiftTotals returns zeroed totals with every map allocated.
func NewShiftTotals() *ShiftTotals {
	t := &ShiftTotals{
		Payments:    make(map[model.PaymentMethod]decimal.Decimal),
		Refunds:     make(map[model.PaymentMethod]decimal.Decimal),
		Movements:   decimal.Zero,
		OrderCounts: make(map[model.OrderStatus]int),
	}
	for _, m := range model.PaymentMethods {
		t.Payments[m] = decimal.Zero
		t.Refunds[m] = decimal.Zero
	}
	return t
}
