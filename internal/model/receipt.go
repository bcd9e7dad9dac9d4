package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptStatus: "pending" | "rendered" | "emailed" | "error"
type ReceiptStatus string

const (
	ReceiptPending  ReceiptStatus = "pending"
	ReceiptRendered ReceiptStatus = "rendered"
	ReceiptEmailed  ReceiptStatus = "emailed"
	ReceiptError    ReceiptStatus = "error"
)

// Receipt records the customer receipt produced for a paid order.
// A reopened and re-paid order gets a second receipt.
type Receipt struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"type:uuid;index;not null"`
	OrderNumber int             `gorm:"not null"`
	Total       decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Status      ReceiptStatus   `gorm:"type:varchar(20);not null;default:'pending'"`
	// PDFPath is absolute on the worker host
	PDFPath    *string
	EmailedTo  *string
	RetryCount int `gorm:"not null;default:0"`
	LastError  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
