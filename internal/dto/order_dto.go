package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CustomerInfo struct {
	Name  *string `json:"name"  validate:"omitempty,max=120"`
	Phone *string `json:"phone" validate:"omitempty,max=40"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// DraftTicket describes an order that exists only on the client until its
// first item is committed.
type DraftTicket struct {
	OrderType string        `json:"order_type" validate:"required,oneof=dine_in takeaway"`
	TableID   *string       `json:"table_id"   validate:"omitempty,uuid"`
	Customer  *CustomerInfo `json:"customer"`
	Notes     string        `json:"notes"      validate:"max=500"`
}

// CommitItemRequest adds one menu item to a draft (creating the order) or
// to an already persisted order. Exactly one of OrderID and Draft is set.
type CommitItemRequest struct {
	OrderID     *string      `json:"order_id"     validate:"omitempty,uuid"`
	Draft       *DraftTicket `json:"draft"        validate:"required_without=OrderID,excluded_with=OrderID"`
	MenuItemID  string       `json:"menu_item_id" validate:"required,uuid"`
	Quantity    int          `json:"quantity"     validate:"required,min=1,max=999"`
	ModifierIDs []string     `json:"modifier_ids" validate:"dive,uuid"`
	Notes       string       `json:"notes"        validate:"max=250"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=999"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=250"`
}

type TransferLineRequest struct {
	TargetOrderID string `json:"target_order_id" validate:"required,uuid"`
}

type DiscountRequest struct {
	Type  string          `json:"type"  validate:"required,oneof=percent fixed"`
	Value decimal.Decimal `json:"value" validate:"required,gt=0"`
}

type PaymentSplit struct {
	Method string          `json:"method" validate:"required,oneof=cash card transfer wallet"`
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

// PayRequest settles an order. Retrying with the same IdempotencyKey returns
// the original result instead of charging twice.
type PayRequest struct {
	Payments       []PaymentSplit `json:"payments"        validate:"required,min=1,dive"`
	IdempotencyKey string         `json:"idempotency_key" validate:"required,max=64"`
}

type RefundRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Method string          `json:"method" validate:"required,oneof=cash card transfer wallet"`
	Reason string          `json:"reason" validate:"required,min=3,max=250"`
}

type SplitSlice struct {
	LineID   string `json:"line_id"  validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type SplitRequest struct {
	Slices []SplitSlice `json:"slices" validate:"required,min=1,dive"`
}

type MoveRequest struct {
	TableID string `json:"table_id" validate:"required,uuid"`
}

type MergeRequest struct {
	OrderAID string `json:"order_a_id" validate:"required,uuid,nefield=OrderBID"`
	OrderBID string `json:"order_b_id" validate:"required,uuid"`
}

// StartNewOrderRequest parks the current order (hold if it has items,
// cancel if empty) and returns a fresh draft.
type StartNewOrderRequest struct {
	CurrentOrderID *string     `json:"current_order_id" validate:"omitempty,uuid"`
	Draft          DraftTicket `json:"draft"            validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LineModifierResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

type OrderLineResponse struct {
	ID            string                 `json:"id"`
	MenuItemID    string                 `json:"menu_item_id"`
	Name          string                 `json:"name"`
	UnitPrice     decimal.Decimal        `json:"unit_price"`
	Quantity      int                    `json:"quantity"`
	Amount        decimal.Decimal        `json:"amount"`
	Modifiers     []LineModifierResponse `json:"modifiers"`
	Notes         string                 `json:"notes,omitempty"`
	Voided        bool                   `json:"voided"`
	VoidReason    *string                `json:"void_reason,omitempty"`
	KitchenSentAt *string                `json:"kitchen_sent_at,omitempty"`
}

type DiscountResponse struct {
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`
}

type PaymentResponse struct {
	ID       string          `json:"id"`
	Method   string          `json:"method"`
	Amount   decimal.Decimal `json:"amount"`
	GroupID  *string         `json:"group_id,omitempty"`
	Reversed bool            `json:"reversed"`
}

type RefundResponse struct {
	ID        string          `json:"id"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	CreatedAt string          `json:"created_at"`
}

type OrderResponse struct {
	ID             string              `json:"id"`
	OrderNumber    int                 `json:"order_number"`
	ShiftID        string              `json:"shift_id"`
	BranchID       string              `json:"branch_id"`
	OrderType      string              `json:"order_type"`
	TableID        *string             `json:"table_id"`
	Status         string              `json:"status"`
	Lines          []OrderLineResponse `json:"lines"`
	Discount       *DiscountResponse   `json:"discount"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	ServiceCharge  decimal.Decimal     `json:"service_charge"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	Total          decimal.Decimal     `json:"total"`
	TotalRefunded  decimal.Decimal     `json:"total_refunded"`
	Notes          string              `json:"notes,omitempty"`
	Customer       *CustomerInfo       `json:"customer,omitempty"`
	Payments       []PaymentResponse   `json:"payments"`
	Refunds        []RefundResponse    `json:"refunds"`
	CancelReason   *string             `json:"cancel_reason,omitempty"`
	VoidReason     *string             `json:"void_reason,omitempty"`
	MergedIntoID   *string             `json:"merged_into_id,omitempty"`
	SplitFromID    *string             `json:"split_from_id,omitempty"`
	Version        int                 `json:"version"`
	CreatedAt      string              `json:"created_at"`
	PaidAt         *string             `json:"paid_at,omitempty"`
}

// OrderSummary is the short form used in table candidate lists.
type OrderSummary struct {
	ID          string          `json:"id"`
	OrderNumber int             `json:"order_number"`
	Status      string          `json:"status"`
	LineCount   int             `json:"line_count"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   string          `json:"created_at"`
}

type PaymentResultResponse struct {
	Order  OrderResponse   `json:"order"`
	Change decimal.Decimal `json:"change"`
	// Replayed is true when the idempotency key matched an earlier call.
	Replayed bool `json:"replayed"`
}

type KitchenResponse struct {
	Order     OrderResponse `json:"order"`
	SentLines int           `json:"sent_lines"`
}

type StartNewOrderResponse struct {
	Parked *OrderSummary `json:"parked,omitempty"`
	Draft  DraftTicket   `json:"draft"`
}
