package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type TableClickRequest struct {
	// CurrentOrderID is the order the cashier is leaving, if any. It is held
	// when it has items and cancelled when empty.
	CurrentOrderID *string `json:"current_order_id" validate:"omitempty,uuid"`
}

type CheckoutRequest struct {
	// OrderIDs limits the checkout to some of the table's orders; empty means all.
	OrderIDs       []string       `json:"order_ids"       validate:"dive,uuid"`
	Payments       []PaymentSplit `json:"payments"        validate:"required,min=1,dive"`
	IdempotencyKey string         `json:"idempotency_key" validate:"required,max=64"`
}

// TableStatusFilter is bound from the query string of GET /v1/tables/status.
type TableStatusFilter struct {
	TableIDs []string `form:"table_id" validate:"required,min=1,max=200,dive,uuid"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MergeResponse struct {
	Primary   OrderResponse `json:"primary"`
	Secondary OrderResponse `json:"secondary"`
}

type SplitResponse struct {
	Original OrderResponse `json:"original"`
	New      OrderResponse `json:"new"`
}

type TransferResponse struct {
	Source OrderResponse `json:"source"`
	Target OrderResponse `json:"target"`
}

// TableClickResponse either lists the orders already on the table or hands
// back a draft bound to it. Orders are never resumed automatically.
type TableClickResponse struct {
	TableID    string         `json:"table_id"`
	Status     string         `json:"status"` // free | active | held
	Candidates []OrderSummary `json:"candidates"`
	Draft      *DraftTicket   `json:"draft,omitempty"`
	Parked     *OrderSummary  `json:"parked,omitempty"`
}

type CheckoutResponse struct {
	GroupID       string          `json:"group_id"`
	Orders        []OrderResponse `json:"orders"`
	CombinedTotal decimal.Decimal `json:"combined_total"`
	Change        decimal.Decimal `json:"change"`
	Replayed      bool            `json:"replayed"`
}

type TableStatus struct {
	TableID  string   `json:"table_id"`
	Status   string   `json:"status"`
	OrderIDs []string `json:"order_ids"`
}

type TableStatusResponse struct {
	Tables []TableStatus `json:"tables"`
}
