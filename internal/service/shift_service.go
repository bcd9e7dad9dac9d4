package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/money"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type ShiftService interface {
	Open(ctx context.Context, actor Actor, req dto.OpenShiftRequest) (*dto.OpenShiftResponse, error)
	RecordMovement(ctx context.Context, actor Actor, shiftID uuid.UUID, req dto.CashMovementRequest) (*dto.CashMovementResponse, error)
	Report(ctx context.Context, actor Actor, shiftID uuid.UUID) (*dto.ZReportResponse, error)
	Close(ctx context.Context, actor Actor, shiftID uuid.UUID, req dto.CloseShiftRequest) (*dto.ZReportResponse, error)
	Active(ctx context.Context, actor Actor) (*dto.ShiftResponse, error)
	History(ctx context.Context, actor Actor, filter dto.ShiftHistoryFilter) (*dto.ShiftListResponse, error)
}

type shiftService struct {
	core
}

func NewShiftService(store repository.Store, audit AuditSink) ShiftService {
	return &shiftService{core: newCore(store, money.Rates{}, audit)}
}

// ── Open ──────────────────────────────────────────────────────────────────────
// The same cashier cannot hold two open shifts at a branch. Another cashier's
// open shift at the branch is reported as a warning only.

func (s *shiftService) Open(ctx context.Context, actor Actor, req dto.OpenShiftRequest) (*dto.OpenShiftResponse, error) {
	opening := money.Round(req.OpeningCash)
	if opening.IsNegative() {
		return nil, invalid("opening cash cannot be negative")
	}

	var (
		sh       *model.Shift
		warnings = []string{}
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		open, err := tx.Shifts().ListOpenByBranch(ctx, actor.BranchID)
		if err != nil {
			return err
		}
		for _, o := range open {
			if o.CashierID == actor.CashierID {
				return newErr(KindConflict, CodeShiftAlreadyOpen, "shift %s is already open for this cashier", o.ID)
			}
			warnings = append(warnings, fmt.Sprintf("cashier %s also has an open shift at this branch", o.CashierID))
		}
		sh = &model.Shift{
			ID:           uuid.New(),
			BranchID:     actor.BranchID,
			RestaurantID: actor.RestaurantID,
			CashierID:    actor.CashierID,
			Status:       model.ShiftOpen,
			OpeningCash:  opening,
			OpenedAt:     s.now(),
			Version:      1,
		}
		err = tx.Shifts().Create(ctx, sh)
		if errors.Is(err, repository.ErrDuplicate) {
			return newErr(KindConflict, CodeShiftAlreadyOpen, "a shift is already open for this cashier")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, "shift.opened", "shift", sh.ID, map[string]any{
		"opening_cash": opening.String(), "warnings": len(warnings),
	})
	log.Info().Str("shift_id", sh.ID.String()).Str("cashier_id", actor.CashierID.String()).Msg("shift opened")
	return &dto.OpenShiftResponse{Shift: *shiftToResponse(sh), Warnings: warnings}, nil
}

// loadShift fetches a shift visible to actor.
func (s *shiftService) loadShift(ctx context.Context, tx repository.Store, actor Actor, id uuid.UUID) (*model.Shift, error) {
	sh, err := tx.Shifts().FindByID(ctx, id)
	return visibleShift(actor, id, sh, err)
}

// lockShift is loadShift holding a row lock until tx ends.
func (s *shiftService) lockShift(ctx context.Context, tx repository.Store, actor Actor, id uuid.UUID, mode repository.LockMode) (*model.Shift, error) {
	sh, err := tx.Shifts().FindLocked(ctx, id, mode)
	return visibleShift(actor, id, sh, err)
}

func visibleShift(actor Actor, id uuid.UUID, sh *model.Shift, err error) (*model.Shift, error) {
	if err != nil {
		return nil, mapRepoErr(err, CodeShiftNotFound)
	}
	if sh.BranchID != actor.BranchID {
		return nil, newErr(KindNotFound, CodeShiftNotFound, "shift %s not found", id)
	}
	return sh, nil
}

// ── RecordMovement ────────────────────────────────────────────────────────────
// Movements are immutable; "out" is stored negative.

func (s *shiftService) RecordMovement(ctx context.Context, actor Actor, shiftID uuid.UUID, req dto.CashMovementRequest) (*dto.CashMovementResponse, error) {
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, invalid("movement amount must be positive")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, invalid("a reason is required for cash movements")
	}
	typ := model.MovementType(req.Type)
	switch typ {
	case model.MovementIn:
	case model.MovementOut:
		amount = amount.Neg()
	default:
		return nil, invalid("movement type must be in or out")
	}

	var m *model.CashMovement
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		sh, err := s.lockShift(ctx, tx, actor, shiftID, repository.LockShare)
		if err != nil {
			return err
		}
		if sh.Status != model.ShiftOpen {
			return precondition(CodeShiftClosed, "shift %s is closed", shiftID)
		}
		m = &model.CashMovement{
			ID:        uuid.New(),
			ShiftID:   sh.ID,
			Type:      typ,
			Amount:    amount,
			Reason:    reason,
			CreatedBy: actor.CashierID,
			CreatedAt: s.now(),
		}
		return tx.Shifts().AddMovement(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "shift.cash_movement", "shift", shiftID, map[string]any{
		"type": string(typ), "amount": amount.String(), "reason": reason,
	})
	resp := movementToResponse(m)
	return &resp, nil
}

// ── Report ────────────────────────────────────────────────────────────────────

func (s *shiftService) Report(ctx context.Context, actor Actor, shiftID uuid.UUID) (*dto.ZReportResponse, error) {
	sh, err := s.loadShift(ctx, s.store, actor, shiftID)
	if err != nil {
		return nil, err
	}
	totals, err := s.store.Shifts().Totals(ctx, sh.ID)
	if err != nil {
		return nil, err
	}
	return zReport(sh, totals, expectedCash(sh, totals), totals.OrderCounts[model.OrderHeld]), nil
}

// expectedCash = opening + cash payments + signed movements − cash refunds.
func expectedCash(sh *model.Shift, t *repository.ShiftTotals) decimal.Decimal {
	return money.Round(sh.OpeningCash.
		Add(t.Payments[model.PaymentCash]).
		Add(t.Movements).
		Sub(t.Refunds[model.PaymentCash]))
}

// ── Close ─────────────────────────────────────────────────────────────────────
// Blind count: the variance is computed after the cashier declares the
// drawer. Held orders block the close; the variance never does.

func (s *shiftService) Close(ctx context.Context, actor Actor, shiftID uuid.UUID, req dto.CloseShiftRequest) (*dto.ZReportResponse, error) {
	closing := money.Round(req.ClosingCash)
	if closing.IsNegative() {
		return nil, invalid("closing cash cannot be negative")
	}

	var (
		sh     *model.Shift
		totals *repository.ShiftTotals
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		// exclusive: in-flight payments and movements commit first and are
		// counted below; later ones see the shift closed
		if sh, err = s.lockShift(ctx, tx, actor, shiftID, repository.LockUpdate); err != nil {
			return err
		}
		if sh.Status != model.ShiftOpen {
			return precondition(CodeShiftClosed, "shift %s is already closed", shiftID)
		}
		if totals, err = tx.Shifts().Totals(ctx, sh.ID); err != nil {
			return err
		}
		if held := totals.OrderCounts[model.OrderHeld]; held > 0 {
			return precondition(CodeHeldOrdersOutstanding, "%d held order(s) must be resumed or cancelled before closing", held)
		}

		expected := expectedCash(sh, totals)
		variance := closing.Sub(expected)
		pct := variancePercent(variance, expected)
		class := classifyVariance(pct)
		now := s.now()

		sh.Status = model.ShiftClosed
		sh.ClosingCash = &closing
		sh.ExpectedCash = &expected
		sh.Variance = &variance
		sh.VariancePct = &pct
		sh.VarianceClass = &class
		sh.Notes = req.Notes
		sh.ClosedAt = &now
		return mapRepoErr(tx.Shifts().Save(ctx, sh), CodeShiftNotFound)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, "shift.closed", "shift", sh.ID, map[string]any{
		"expected_cash":  sh.ExpectedCash.String(),
		"closing_cash":   closing.String(),
		"variance":       sh.Variance.String(),
		"variance_class": string(*sh.VarianceClass),
	})
	if *sh.VarianceClass == model.VarianceCritical {
		log.Warn().Str("shift_id", sh.ID.String()).Str("variance", sh.Variance.String()).Msg("shift closed with critical variance")
	}
	return zReport(sh, totals, *sh.ExpectedCash, 0), nil
}

// variancePercent is variance / expected × 100, rounded to 2 places; zero
// when nothing was expected.
func variancePercent(variance, expected decimal.Decimal) decimal.Decimal {
	if expected.IsZero() {
		return decimal.Zero
	}
	return variance.Div(expected).Mul(decimal.NewFromInt(100)).Round(2)
}

// classifyVariance: normal |pct| <= 1, warning <= 5, critical above.
func classifyVariance(pct decimal.Decimal) model.VarianceClass {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return model.VarianceNormal
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return model.VarianceWarning
	default:
		return model.VarianceCritical
	}
}

// ── Lookups ───────────────────────────────────────────────────────────────────

func (s *shiftService) Active(ctx context.Context, actor Actor) (*dto.ShiftResponse, error) {
	sh, err := s.store.Shifts().FindOpenByCashier(ctx, actor.BranchID, actor.CashierID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newErr(KindNotFound, CodeNoOpenShift, "no open shift for this cashier")
	}
	if err != nil {
		return nil, err
	}
	return shiftToResponse(sh), nil
}

func (s *shiftService) History(ctx context.Context, actor Actor, filter dto.ShiftHistoryFilter) (*dto.ShiftListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	shifts, total, err := s.store.Shifts().ListClosed(ctx, actor.BranchID, actor.CashierID, filter.Page, filter.Limit)
	if err != nil {
		return nil, err
	}
	resp := &dto.ShiftListResponse{
		Data:  make([]dto.ShiftResponse, 0, len(shifts)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range shifts {
		resp.Data = append(resp.Data, *shiftToResponse(&shifts[i]))
	}
	return resp, nil
}
