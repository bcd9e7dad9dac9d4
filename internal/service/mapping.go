package service

import (
	"time"

	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/money"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}

func idPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// ── Orders ────────────────────────────────────────────────────────────────────

func orderToResponse(o *model.Order) *dto.OrderResponse {
	resp := &dto.OrderResponse{
		ID:             o.ID.String(),
		OrderNumber:    o.OrderNumber,
		ShiftID:        o.ShiftID.String(),
		BranchID:       o.BranchID.String(),
		OrderType:      string(o.OrderType),
		TableID:        idPtr(o.TableID),
		Status:         string(o.Status),
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		ServiceCharge:  o.ServiceCharge,
		TaxAmount:      o.TaxAmount,
		Total:          o.Total,
		TotalRefunded:  o.TotalRefunded,
		Notes:          o.Notes,
		CancelReason:   o.CancelReason,
		VoidReason:     o.VoidReason,
		MergedIntoID:   idPtr(o.MergedIntoID),
		SplitFromID:    idPtr(o.SplitFromID),
		Version:        o.Version,
		CreatedAt:      fmtTime(o.CreatedAt),
		PaidAt:         fmtTimePtr(o.PaidAt),
		Lines:          make([]dto.OrderLineResponse, 0, len(o.Lines)),
		Payments:       make([]dto.PaymentResponse, 0, len(o.Payments)),
		Refunds:        make([]dto.RefundResponse, 0, len(o.Refunds)),
	}
	if d := o.Discount(); d != nil {
		resp.Discount = &dto.DiscountResponse{Type: string(d.Type), Value: d.Value}
	}
	if c := o.Customer; c.Name != nil || c.Phone != nil || c.Email != nil {
		resp.Customer = &dto.CustomerInfo{Name: c.Name, Phone: c.Phone, Email: c.Email}
	}
	for i := range o.Lines {
		l := &o.Lines[i]
		mods := make([]dto.LineModifierResponse, 0, len(l.Modifiers))
		for _, m := range l.Modifiers {
			mods = append(mods, dto.LineModifierResponse{ID: m.ID.String(), Name: m.Name, PriceDelta: m.PriceDelta})
		}
		resp.Lines = append(resp.Lines, dto.OrderLineResponse{
			ID:            l.ID.String(),
			MenuItemID:    l.MenuItemID.String(),
			Name:          l.Name,
			UnitPrice:     l.UnitPrice,
			Quantity:      l.Quantity,
			Amount:        money.Round(l.Amount()),
			Modifiers:     mods,
			Notes:         l.Notes,
			Voided:        l.Voided,
			VoidReason:    l.VoidReason,
			KitchenSentAt: fmtTimePtr(l.KitchenSentAt),
		})
	}
	for _, p := range o.Payments {
		resp.Payments = append(resp.Payments, dto.PaymentResponse{
			ID:       p.ID.String(),
			Method:   string(p.Method),
			Amount:   p.Amount,
			GroupID:  idPtr(p.GroupID),
			Reversed: p.Reversed,
		})
	}
	for _, r := range o.Refunds {
		resp.Refunds = append(resp.Refunds, dto.RefundResponse{
			ID:        r.ID.String(),
			Method:    string(r.Method),
			Amount:    r.Amount,
			Reason:    r.Reason,
			CreatedAt: fmtTime(r.CreatedAt),
		})
	}
	return resp
}

func orderToSummary(o *model.Order) dto.OrderSummary {
	return dto.OrderSummary{
		ID:          o.ID.String(),
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		LineCount:   o.ActiveLineCount(),
		Total:       o.Total,
		CreatedAt:   fmtTime(o.CreatedAt),
	}
}

// ── Shifts ────────────────────────────────────────────────────────────────────

func shiftToResponse(s *model.Shift) *dto.ShiftResponse {
	resp := &dto.ShiftResponse{
		ID:           s.ID.String(),
		BranchID:     s.BranchID.String(),
		CashierID:    s.CashierID.String(),
		Status:       string(s.Status),
		OpeningCash:  s.OpeningCash,
		ClosingCash:  s.ClosingCash,
		ExpectedCash: s.ExpectedCash,
		Notes:        s.Notes,
		OpenedAt:     fmtTime(s.OpenedAt),
		ClosedAt:     fmtTimePtr(s.ClosedAt),
	}
	if s.Variance != nil {
		v := dto.VarianceResponse{Amount: *s.Variance}
		if s.VariancePct != nil {
			v.Percent = *s.VariancePct
		}
		if s.VarianceClass != nil {
			v.Classification = string(*s.VarianceClass)
		}
		resp.Variance = &v
	}
	return resp
}

func movementToResponse(m *model.CashMovement) dto.CashMovementResponse {
	return dto.CashMovementResponse{
		ID:        m.ID.String(),
		Type:      string(m.Type),
		Amount:    m.Amount,
		Reason:    m.Reason,
		CreatedAt: fmtTime(m.CreatedAt),
	}
}

// zReport assembles the per-method breakdown from freshly summed totals.
func zReport(s *model.Shift, t *repository.ShiftTotals, expected decimal.Decimal, held int) *dto.ZReportResponse {
	rep := &dto.ZReportResponse{
		Shift:        *shiftToResponse(s),
		ExpectedCash: expected,
		Movements:    make([]dto.CashMovementResponse, 0, len(s.Movements)),
		MovementsNet: t.Movements,
		OrderCounts:  make(map[string]int, len(t.OrderCounts)),
		HeldOrders:   held,
	}
	for _, m := range model.PaymentMethods {
		rep.ByMethod = append(rep.ByMethod, dto.MethodBreakdown{
			Method:   string(m),
			Payments: t.Payments[m],
			Refunds:  t.Refunds[m],
			Net:      t.Payments[m].Sub(t.Refunds[m]),
		})
	}
	for _, m := range s.Movements {
		rep.Movements = append(rep.Movements, movementToResponse(&m))
	}
	for st, n := range t.OrderCounts {
		rep.OrderCounts[string(st)] = n
	}
	return rep
}
