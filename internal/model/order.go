package model

import (
	"time"

	"restopos/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus: "open" | "held" | "paid" | "voided" | "cancelled"
// Drafts never reach the store, so there is no draft status here.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderHeld      OrderStatus = "held"
	OrderPaid      OrderStatus = "paid"
	OrderVoided    OrderStatus = "voided"
	OrderCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further line or status change is allowed
// (reopen of a paid order is the only way back).
func (s OrderStatus) Terminal() bool {
	return s == OrderPaid || s == OrderVoided || s == OrderCancelled
}

// Active reports whether the order still occupies its table.
func (s OrderStatus) Active() bool {
	return s == OrderOpen || s == OrderHeld
}

// OrderType: "dine_in" | "takeaway"
type OrderType string

const (
	OrderDineIn   OrderType = "dine_in"
	OrderTakeaway OrderType = "takeaway"
)

func (t OrderType) Valid() bool { return t == OrderDineIn || t == OrderTakeaway }

// CustomerInfo is optional contact data captured with the order.
type CustomerInfo struct {
	Name  *string `gorm:"type:varchar(120)"`
	Phone *string `gorm:"type:varchar(40)"`
	Email *string `gorm:"type:varchar(160)"`
}

// Order is the aggregate root for one customer transaction.
// Subtotal, DiscountAmount, ServiceCharge, TaxAmount and Total are always
// derived by Recompute and never edited directly.
type Order struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey"`
	ShiftID      uuid.UUID   `gorm:"type:uuid;index;not null"`
	BranchID     uuid.UUID   `gorm:"type:uuid;index;not null"`
	RestaurantID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_orders_restaurant_number"`
	OrderNumber  int         `gorm:"not null;uniqueIndex:idx_orders_restaurant_number"`
	CreatedBy    uuid.UUID   `gorm:"type:uuid;not null"`
	OrderType    OrderType   `gorm:"type:varchar(20);not null"`
	TableID      *uuid.UUID  `gorm:"type:uuid;index"`
	Status       OrderStatus `gorm:"type:varchar(20);not null;index"`

	DiscountType  *money.DiscountType `gorm:"type:varchar(10)"`
	DiscountValue *decimal.Decimal    `gorm:"type:decimal(12,3)"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	ServiceCharge  decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	Total          decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	TotalRefunded  decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`

	Notes    string
	Customer CustomerInfo `gorm:"embedded;embeddedPrefix:customer_"`

	// CancelReason / VoidReason are set on the matching terminal transition.
	CancelReason *string
	VoidReason   *string
	// MergedIntoID points at the primary order when this one was merged away.
	MergedIntoID *uuid.UUID `gorm:"type:uuid"`
	// SplitFromID points at the order this one was split off from.
	SplitFromID *uuid.UUID `gorm:"type:uuid"`

	// Version is the optimistic concurrency token; every save bumps it.
	Version   int `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time

	Lines    []OrderLine `gorm:"foreignKey:OrderID"`
	Payments []Payment   `gorm:"foreignKey:OrderID"`
	Refunds  []Refund    `gorm:"foreignKey:OrderID"`
}

// Discount returns the stored discount, or nil.
func (o *Order) Discount() *money.Discount {
	if o.DiscountType == nil || o.DiscountValue == nil {
		return nil
	}
	return &money.Discount{Type: *o.DiscountType, Value: *o.DiscountValue}
}

// SetDiscount stores d on the order; nil removes the discount.
func (o *Order) SetDiscount(d *money.Discount) {
	if d == nil {
		o.DiscountType = nil
		o.DiscountValue = nil
		return
	}
	t, v := d.Type, d.Value
	o.DiscountType = &t
	o.DiscountValue = &v
}

// ActiveLines returns pointers to the non-voided lines.
func (o *Order) ActiveLines() []*OrderLine {
	out := make([]*OrderLine, 0, len(o.Lines))
	for i := range o.Lines {
		if !o.Lines[i].Voided {
			out = append(out, &o.Lines[i])
		}
	}
	return out
}

// ActiveLineCount is the number of non-voided lines.
func (o *Order) ActiveLineCount() int {
	n := 0
	for i := range o.Lines {
		if !o.Lines[i].Voided {
			n++
		}
	}
	return n
}

// LineSubtotal is Σ(unitPrice × quantity) over non-voided lines, rounded.
func (o *Order) LineSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for i := range o.Lines {
		if o.Lines[i].Voided {
			continue
		}
		sum = sum.Add(o.Lines[i].Amount())
	}
	return money.Round(sum)
}

// Recompute refreshes every derived amount from the current line set and the
// stored discount. A stored fixed discount larger than the new subtotal is
// clamped, never carried into a negative total.
func (o *Order) Recompute(rates money.Rates) {
	subtotal := o.LineSubtotal()
	if subtotal.IsZero() {
		o.Subtotal = decimal.Zero
		o.DiscountAmount = decimal.Zero
		o.ServiceCharge = decimal.Zero
		o.TaxAmount = decimal.Zero
		o.Total = decimal.Zero
		return
	}
	t := money.ComputeTotals(subtotal, money.Clamp(subtotal, o.Discount()), rates)
	o.Subtotal = t.Subtotal
	o.DiscountAmount = t.DiscountAmount
	o.ServiceCharge = t.ServiceCharge
	o.TaxAmount = t.TaxAmount
	o.Total = t.Total
}

// FindLine returns the line with id and its index, or nil and -1.
func (o *Order) FindLine(id uuid.UUID) (*OrderLine, int) {
	for i := range o.Lines {
		if o.Lines[i].ID == id {
			return &o.Lines[i], i
		}
	}
	return nil, -1
}

// RemoveLine detaches the line at index i and returns it.
func (o *Order) RemoveLine(i int) OrderLine {
	l := o.Lines[i]
	o.Lines = append(o.Lines[:i:i], o.Lines[i+1:]...)
	return l
}

// AppendLine attaches l to this order at the end of the line list.
func (o *Order) AppendLine(l OrderLine) {
	l.OrderID = o.ID
	l.Position = o.nextPosition()
	o.Lines = append(o.Lines, l)
}

func (o *Order) nextPosition() int {
	max := 0
	for i := range o.Lines {
		if o.Lines[i].Position > max {
			max = o.Lines[i].Position
		}
	}
	return max + 1
}

// RefundableRemaining is Total − TotalRefunded, floored at zero.
func (o *Order) RefundableRemaining() decimal.Decimal {
	r := o.Total.Sub(o.TotalRefunded)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// LineModifier is a modifier chosen for a line, with the price delta that
// was in force when the line was added.
type LineModifier struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// OrderLine is one menu item within an order. UnitPrice already includes the
// modifier deltas and is never repriced from the menu afterwards.
// Voided lines stay on the order for the audit trail.
type OrderLine struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID       uuid.UUID       `gorm:"type:uuid;index;not null"`
	MenuItemID    uuid.UUID       `gorm:"type:uuid;not null"`
	Name          string          `gorm:"not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Quantity      int             `gorm:"not null"`
	Modifiers     []LineModifier  `gorm:"serializer:json"`
	Notes         string
	Position      int  `gorm:"not null;default:0"`
	Voided        bool `gorm:"not null;default:false"`
	VoidReason    *string
	VoidedAt      *time.Time
	KitchenSentAt *time.Time
	CreatedAt     time.Time
}

// Amount is unitPrice × quantity, unrounded.
func (l *OrderLine) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// PaymentMethod: "cash" | "card" | "transfer" | "wallet"
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentWallet   PaymentMethod = "wallet"
)

// PaymentMethods lists every method in report order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentTransfer, PaymentWallet}

// Payment is one applied payment split. Payments are never deleted: a reopen
// marks them Reversed so the shift's expected cash stops counting them.
type Payment struct {
	ID      uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID uuid.UUID       `gorm:"type:uuid;index;not null"`
	ShiftID uuid.UUID       `gorm:"type:uuid;index;not null"`
	Method  PaymentMethod   `gorm:"type:varchar(20);not null"`
	Amount  decimal.Decimal `gorm:"type:decimal(12,3);not null"`

	// Tendered is what the customer handed over; above Amount only for cash.
	Tendered decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	// GroupID ties together the payments of one table checkout.
	GroupID        *uuid.UUID `gorm:"type:uuid;index"`
	IdempotencyKey string     `gorm:"type:varchar(64);index"`
	Reversed       bool       `gorm:"not null;default:false"`
	ReversedAt     *time.Time
	CreatedBy      uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt      time.Time
}

// Refund is a (possibly partial) refund against a paid order.
type Refund struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"`
	ShiftID   uuid.UUID       `gorm:"type:uuid;index;not null"`
	Method    PaymentMethod   `gorm:"type:varchar(20);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Reason    string          `gorm:"not null"`
	CreatedBy uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}

// OrderCounter backs the per-restaurant sequential order number.
type OrderCounter struct {
	RestaurantID uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastNumber   int       `gorm:"not null;default:0"`
}

// Clone returns a deep copy of the order, its lines, payments and refunds.
func (o *Order) Clone() *Order {
	c := *o
	c.Lines = make([]OrderLine, len(o.Lines))
	for i, l := range o.Lines {
		l.Modifiers = append([]LineModifier(nil), l.Modifiers...)
		c.Lines[i] = l
	}
	c.Payments = append([]Payment(nil), o.Payments...)
	c.Refunds = append([]Refund(nil), o.Refunds...)
	return &c
}
