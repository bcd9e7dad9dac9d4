package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShiftStatus: "open" | "closed"
type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "open"
	ShiftClosed ShiftStatus = "closed"
)

// VarianceClass: "normal" | "warning" | "critical"
type VarianceClass string

const (
	VarianceNormal   VarianceClass = "normal"
	VarianceWarning  VarianceClass = "warning"
	VarianceCritical VarianceClass = "critical"
)

// Shift is one cashier's cash-drawer session at a branch.
// A shift closes exactly once; there is no reopen.
type Shift struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BranchID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	RestaurantID uuid.UUID       `gorm:"type:uuid;not null"`
	CashierID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status       ShiftStatus     `gorm:"type:varchar(20);not null;default:'open'"`
	OpeningCash  decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	// ExpectedCash and Variance are frozen at close; before that the
	// expected figure is always re-summed from payments, refunds and movements.
	ClosingCash   *decimal.Decimal `gorm:"type:decimal(12,3)"`
	ExpectedCash  *decimal.Decimal `gorm:"type:decimal(12,3)"`
	Variance      *decimal.Decimal `gorm:"type:decimal(12,3)"`
	VariancePct   *decimal.Decimal `gorm:"type:decimal(7,2)"`
	VarianceClass *VarianceClass   `gorm:"type:varchar(20)"`
	Notes         *string
	OpenedAt      time.Time
	ClosedAt      *time.Time
	Version       int `gorm:"not null;default:1"`

	Movements []CashMovement `gorm:"foreignKey:ShiftID"`
}

// MovementType: "in" | "out"
type MovementType string

const (
	MovementIn  MovementType = "in"
	MovementOut MovementType = "out"
)

// CashMovement is an immutable entry in the drawer ledger. Amount is signed:
// positive for "in", negative for "out".
type CashMovement struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ShiftID   uuid.UUID       `gorm:"type:uuid;index;not null"`
	Type      MovementType    `gorm:"type:varchar(10);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Reason    string          `gorm:"not null"`
	CreatedBy uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}
