package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenShiftRequest struct {
	OpeningCash decimal.Decimal `json:"opening_cash" validate:"min=0"`
}

type CashMovementRequest struct {
	Type   string          `json:"type"   validate:"required,oneof=in out"`
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Reason string          `json:"reason" validate:"required,min=3,max=250"`
}

// CloseShiftRequest is a blind count: the cashier declares the drawer
// before seeing the expected figure.
type CloseShiftRequest struct {
	ClosingCash decimal.Decimal `json:"closing_cash" validate:"min=0"`
	Notes       *string         `json:"notes"        validate:"omitempty,max=500"`
}

// ShiftHistoryFilter is bound from the query string of GET /v1/shifts/history.
type ShiftHistoryFilter struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type VarianceResponse struct {
	Amount         decimal.Decimal `json:"amount"`
	Percent        decimal.Decimal `json:"percent"`
	Classification string          `json:"classification"` // normal | warning | critical
}

type CashMovementResponse struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	CreatedAt string          `json:"created_at"`
}

type ShiftResponse struct {
	ID           string            `json:"id"`
	BranchID     string            `json:"branch_id"`
	CashierID    string            `json:"cashier_id"`
	Status       string            `json:"status"`
	OpeningCash  decimal.Decimal   `json:"opening_cash"`
	ClosingCash  *decimal.Decimal  `json:"closing_cash"`
	ExpectedCash *decimal.Decimal  `json:"expected_cash"`
	Variance     *VarianceResponse `json:"variance"`
	Notes        *string           `json:"notes,omitempty"`
	OpenedAt     string            `json:"opened_at"`
	ClosedAt     *string           `json:"closed_at"`
}

type OpenShiftResponse struct {
	Shift ShiftResponse `json:"shift"`
	// Warnings carries soft-check results, e.g. another cashier already has
	// an open shift at the branch.
	Warnings []string `json:"warnings"`
}

type MethodBreakdown struct {
	Method   string          `json:"method"`
	Payments decimal.Decimal `json:"payments"`
	Refunds  decimal.Decimal `json:"refunds"`
	Net      decimal.Decimal `json:"net"`
}

// ZReportResponse is always computed fresh from payments, refunds and
// movements; nothing in it is a stored running total.
type ZReportResponse struct {
	Shift        ShiftResponse          `json:"shift"`
	ExpectedCash decimal.Decimal        `json:"expected_cash"`
	ByMethod     []MethodBreakdown      `json:"by_method"`
	Movements    []CashMovementResponse `json:"movements"`
	MovementsNet decimal.Decimal        `json:"movements_net"`
	OrderCounts  map[string]int         `json:"order_counts"`
	HeldOrders   int                    `json:"held_orders"`
}

type ShiftListResponse struct {
	Data  []ShiftResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}
