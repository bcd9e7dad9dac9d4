package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/money"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AutoDiscardReason is recorded on empty orders cancelled by "start new
// order", a table switch or the stale-order sweeper.
const AutoDiscardReason = "auto-discard empty order"

type OrderService interface {
	CommitItem(ctx context.Context, actor Actor, req dto.CommitItemRequest) (*dto.OrderResponse, error)
	GetOrder(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error)
	UpdateLineQuantity(ctx context.Context, actor Actor, orderID, lineID uuid.UUID, quantity int) (*dto.OrderResponse, error)
	VoidLine(ctx context.Context, actor Actor, orderID, lineID uuid.UUID, reason string) (*dto.OrderResponse, error)
	ApplyDiscount(ctx context.Context, actor Actor, id uuid.UUID, req dto.DiscountRequest) (*dto.OrderResponse, error)
	RemoveDiscount(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error)
	Hold(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error)
	Resume(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error)
	Cancel(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*dto.OrderResponse, error)
	Void(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*dto.OrderResponse, error)
	Pay(ctx context.Context, actor Actor, id uuid.UUID, req dto.PayRequest) (*dto.PaymentResultResponse, error)
	Refund(ctx context.Context, actor Actor, id uuid.UUID, req dto.RefundRequest) (*dto.OrderResponse, error)
	Reopen(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error)
	SendToKitchen(ctx context.Context, actor Actor, id uuid.UUID) (*dto.KitchenResponse, error)
	StartNewOrder(ctx context.Context, actor Actor, req dto.StartNewOrderRequest) (*dto.StartNewOrderResponse, error)
	// DiscardStaleEmpty cancels open orders without live lines created more
	// than olderThan ago, across all branches. It returns how many it cancelled.
	DiscardStaleEmpty(ctx context.Context, olderThan time.Duration) (int, error)
}

type orderService struct {
	core
	menu     repository.MenuRepository
	kitchen  KitchenNotifier
	receipts ReceiptQueue
}

func NewOrderService(
	store repository.Store,
	menu repository.MenuRepository,
	rates money.Rates,
	audit AuditSink,
	kitchen KitchenNotifier,
	receipts ReceiptQueue,
) OrderService {
	return &orderService{
		core:     newCore(store, rates, audit),
		menu:     menu,
		kitchen:  kitchen,
		receipts: receipts,
	}
}

// ── CommitItem ────────────────────────────────────────────────────────────────
// A draft becomes an order only here, together with its first line:
//   1. Resolve the menu item and modifiers (outside the tx, read-only)
//   2. Draft: find the caller's open shift, number and create the order
//      Persisted: the order must be open on an open shift
//   3. Append the line, recompute, save

func (s *orderService) CommitItem(ctx context.Context, actor Actor, req dto.CommitItemRequest) (*dto.OrderResponse, error) {
	var ticket Ticket
	switch {
	case req.OrderID != nil && req.Draft != nil:
		return nil, invalid("send either order_id or draft, not both")
	case req.OrderID != nil:
		id, err := parseID("order_id", *req.OrderID)
		if err != nil {
			return nil, err
		}
		ticket = Persisted{OrderID: id}
	case req.Draft != nil:
		d, err := draftFromDTO(*req.Draft)
		if err != nil {
			return nil, err
		}
		ticket = d
	default:
		return nil, invalid("order_id or draft is required")
	}

	line, err := s.buildLine(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	var o *model.Order
	switch t := ticket.(type) {
	case Draft:
		o, err = s.materialize(ctx, actor, t, line)
		if err != nil {
			return nil, err
		}
		s.recordOrder(ctx, actor, "order.created", o, map[string]any{"order_type": string(o.OrderType)})
	case Persisted:
		o, err = s.mutateOrder(ctx, actor, t.OrderID, mutateOpts{shiftOpen: true}, func(_ repository.Store, o *model.Order) error {
			if o.Status != model.OrderOpen {
				return precondition(CodeOrderNotOpen, "items can only be added to open orders (order is %s)", o.Status)
			}
			o.AppendLine(line)
			s.recompute(o)
			o.UpdatedAt = s.now()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	s.recordOrder(ctx, actor, "order.line_added", o, map[string]any{
		"line_id": line.ID.String(), "menu_item_id": line.MenuItemID.String(), "quantity": line.Quantity,
	})
	return orderToResponse(o), nil
}

func (s *orderService) buildLine(ctx context.Context, actor Actor, req dto.CommitItemRequest) (model.OrderLine, error) {
	itemID, err := parseID("menu_item_id", req.MenuItemID)
	if err != nil {
		return model.OrderLine{}, err
	}
	if req.Quantity < 1 {
		return model.OrderLine{}, invalid("quantity must be at least 1")
	}
	item, err := s.menu.FindItem(ctx, actor.RestaurantID, itemID)
	if err != nil {
		return model.OrderLine{}, mapRepoErr(err, CodeMenuItemNotFound)
	}
	if !item.Available {
		return model.OrderLine{}, precondition(CodeMenuItemUnavailable, "%s is not available", item.Name)
	}

	unit := item.BasePrice
	mods := make([]model.LineModifier, 0, len(req.ModifierIDs))
	for _, raw := range req.ModifierIDs {
		mid, err := parseID("modifier_ids", raw)
		if err != nil {
			return model.OrderLine{}, err
		}
		m := item.FindModifier(mid)
		if m == nil {
			return model.OrderLine{}, newErr(KindNotFound, CodeModifierNotFound, "modifier %s does not belong to %s", mid, item.Name)
		}
		unit = unit.Add(m.PriceDelta)
		mods = append(mods, model.LineModifier{ID: m.ID, Name: m.Name, PriceDelta: m.PriceDelta})
	}
	unit = money.Round(unit)
	if unit.IsNegative() {
		return model.OrderLine{}, invalid("modifiers bring the price of %s below zero", item.Name)
	}

	return model.OrderLine{
		ID:         uuid.New(),
		MenuItemID: item.ID,
		Name:       item.Name,
		UnitPrice:  unit,
		Quantity:   req.Quantity,
		Modifiers:  mods,
		Notes:      req.Notes,
		CreatedAt:  s.now(),
	}, nil
}

func (s *orderService) materialize(ctx context.Context, actor Actor, d Draft, line model.OrderLine) (*model.Order, error) {
	var o *model.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		shift, err := tx.Shifts().FindOpenByCashier(ctx, actor.BranchID, actor.CashierID)
		if errors.Is(err, repository.ErrNotFound) {
			return precondition(CodeNoOpenShift, "open a shift before taking orders")
		}
		if err != nil {
			return err
		}
		o, err = s.newOrder(ctx, tx, actor, shift)
		if err != nil {
			return err
		}
		o.OrderType = d.OrderType
		o.TableID = d.TableID
		o.Customer = d.Customer
		o.Notes = d.Notes
		o.AppendLine(line)
		s.recompute(o)
		return mapRepoErr(tx.Orders().Create(ctx, o), CodeOrderNotFound)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("order_id", o.ID.String()).Int("order_number", o.OrderNumber).Msg("order created")
	return o, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *orderService) GetOrder(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error) {
	o, err := s.loadOrder(ctx, s.store.Orders(), actor, id)
	if err != nil {
		return nil, err
	}
	return orderToResponse(o), nil
}

// ── Line operations ───────────────────────────────────────────────────────────

func (s *orderService) UpdateLineQuantity(ctx context.Context, actor Actor, orderID, lineID uuid.UUID, quantity int) (*dto.OrderResponse, error) {
	if quantity < 1 {
		return nil, invalid("quantity must be at least 1; void the line to remove it")
	}
	var before int
	o, err := s.mutateOrder(ctx, actor, orderID, mutateOpts{shiftOpen: true}, func(_ repository.Store, o *model.Order) error {
		if o.Status != model.OrderOpen {
			return precondition(CodeOrderNotOpen, "lines can only change on open orders (order is %s)", o.Status)
		}
		l, err := liveLine(o, lineID)
		if err != nil {
			return err
		}
		if l.KitchenSentAt != nil {
			return precondition(CodeLineAlreadySent, "%s was already sent to the kitchen; void it instead", l.Name)
		}
		before = l.Quantity
		l.Quantity = quantity
		s.recompute(o)
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.line_quantity_changed", o, map[string]any{
		"line_id": lineID.String(), "from": before, "to": quantity,
	})
	return orderToResponse(o), nil
}

func (s *orderService) VoidLine(ctx context.Context, actor Actor, orderID, lineID uuid.UUID, reason string) (*dto.OrderResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("a reason is required to void a line")
	}
	o, err := s.mutateOrder(ctx, actor, orderID, mutateOpts{}, func(_ repository.Store, o *model.Order) error {
		if o.Status != model.OrderOpen {
			return precondition(CodeOrderNotOpen, "lines can only be voided on open orders (order is %s)", o.Status)
		}
		l, err := liveLine(o, lineID)
		if err != nil {
			return err
		}
		now := s.now()
		l.Voided = true
		l.VoidReason = &reason
		l.VoidedAt = &now
		s.recompute(o)
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.line_voided", o, map[string]any{"line_id": lineID.String(), "reason": reason})
	return orderToResponse(o), nil
}

// liveLine finds a non-voided line of o.
func liveLine(o *model.Order, lineID uuid.UUID) (*model.OrderLine, error) {
	l, _ := o.FindLine(lineID)
	if l == nil {
		return nil, newErr(KindNotFound, CodeLineNotFound, "line %s not found on order #%d", lineID, o.OrderNumber)
	}
	if l.Voided {
		return nil, precondition(CodeLineVoided, "line %s is voided", lineID)
	}
	return l, nil
}

// ── Discount ──────────────────────────────────────────────────────────────────

func (s *orderService) ApplyDiscount(ctx context.Context, actor Actor, id uuid.UUID, req dto.DiscountRequest) (*dto.OrderResponse, error) {
	d := money.Discount{Type: money.DiscountType(req.Type), Value: money.Round(req.Value)}
	if !d.Type.Valid() {
		return nil, invalid("discount type must be percent or fixed")
	}
	if !d.Value.IsPositive() {
		return nil, invalid("discount value must be positive")
	}
	if d.Type == money.DiscountPercent && d.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, invalid("a percent discount cannot exceed 100")
	}
	o, err := s.mutateOrder(ctx, actor, id, mutateOpts{}, func(_ repository.Store, o *model.Order) error {
		if !o.Status.Active() {
			return precondition(CodeOrderNotOpen, "discounts apply to open or held orders (order is %s)", o.Status)
		}
		if d.Type == money.DiscountFixed {
			if sub := o.LineSubtotal(); d.Value.GreaterThan(sub) {
				return recoverable(CodeDiscountExceeds, "discount %s exceeds the subtotal %s",
					d.Value.StringFixed(money.Precision), sub.StringFixed(money.Precision))
			}
		}
		o.SetDiscount(&d)
		s.recompute(o)
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.discount_applied", o, map[string]any{"type": string(d.Type), "value": d.Value.String()})
	return orderToResponse(o), nil
}

func (s *orderService) RemoveDiscount(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error) {
	o, err := s.mutateOrder(ctx, actor, id, mutateOpts{}, func(_ repository.Store, o *model.Order) error {
		if !o.Status.Active() {
			return precondition(CodeOrderNotOpen, "discounts apply to open or held orders (order is %s)", o.Status)
		}
		o.SetDiscount(nil)
		s.recompute(o)
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.discount_removed", o, nil)
	return orderToResponse(o), nil
}

// ── Status transitions ────────────────────────────────────────────────────────

func (s *orderService) Hold(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error) {
	o, err := s.mutateOrder(ctx, actor, id, mutateOpts{shiftOpen: true}, func(_ repository.Store, o *model.Order) error {
		return s.hold(o)
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.held", o, nil)
	return orderToResponse(o), nil
}

func (c *core) hold(o *model.Order) error {
	if o.Status != model.OrderOpen {
		return precondition(CodeOrderNotOpen, "only open orders can be held (order is %s)", o.Status)
	}
	if o.ActiveLineCount() == 0 {
		return precondition(CodeOrderEmpty, "an empty order cannot be held")
	}
	o.Status = model.OrderHeld
	o.UpdatedAt = c.now()
	return nil
}

func (s *orderService) Resume(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error) {
	o, err := s.mutateOrder(ctx, actor, id, mutateOpts{shiftOpen: true}, func(_ repository.Store, o *model.Order) error {
		if o.Status != model.OrderHeld {
			return precondition(CodeOrderNotHeld, "only held orders can be resumed (order is %s)", o.Status)
		}
		o.Status = model.OrderOpen
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.resumed", o, nil)
	return orderToResponse(o), nil
}

func (s *orderService) Cancel(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*dto.OrderResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("a reason is required to cancel an order")
	}
	o, err := s.mutateOrder(ctx, actor, id, mutateOpts{}, func(_ repository.Store, o *model.Order) error {
		return s.cancel(o, reason)
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.cancelled", o, map[string]any{"reason": reason})
	return orderToResponse(o), nil
}

func (c *core) cancel(o *model.Order, reason string) error {
	if o.Status.Terminal() {
		return precondition(CodeOrderTerminal, "order #%d is already %s", o.OrderNumber, o.Status)
	}
	o.Status = model.OrderCancelled
	o.CancelReason = &reason
	o.UpdatedAt = c.now()
	return nil
}

func (s *orderService) Void(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*dto.OrderResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("a reason is required to void an order")
	}
	o, err := s.mutateOrder(ctx, actor, id, mutateOpts{}, func(_ repository.Store, o *model.Order) error {
		switch o.Status {
		case model.OrderOpen:
		case model.OrderPaid:
			return precondition(CodeOrderPaidUseRefund, "order #%d is paid; refund it instead", o.OrderNumber)
		default:
			return precondition(CodeOrderNotOpen, "only open orders can be voided (order is %s)", o.Status)
		}
		o.Status = model.OrderVoided
		o.VoidReason = &reason
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.voided", o, map[string]any{"reason": reason})
	return orderToResponse(o), nil
}

// ── Pay ───────────────────────────────────────────────────────────────────────
// Payment rows and the transition to paid are written in one transaction.
// A retry with the same idempotency key returns the recorded outcome.

func (s *orderService) Pay(ctx context.Context, actor Actor, id uuid.UUID, req dto.PayRequest) (*dto.PaymentResultResponse, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, invalid("idempotency_key is required")
	}
	var (
		o        *model.Order
		change   decimal.Decimal
		replayed bool
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		o, err = s.loadOrder(ctx, tx.Orders(), actor, id)
		if err != nil {
			return err
		}
		if prev := paymentsByKey(o, key); len(prev) > 0 {
			replayed = true
			change = replayChange(prev)
			return nil
		}
		switch o.Status {
		case model.OrderOpen:
		case model.OrderPaid:
			return precondition(CodeOrderAlreadyPaid, "order #%d is already paid", o.OrderNumber)
		default:
			return precondition(CodeOrderNotOpen, "only open orders can be paid (order is %s)", o.Status)
		}
		if o.ActiveLineCount() == 0 {
			return precondition(CodeOrderEmpty, "an empty order cannot be paid")
		}
		if _, err := s.requireOpenShift(ctx, tx, o.ShiftID); err != nil {
			return err
		}
		s.recompute(o)
		alloc, err := allocatePayments(req.Payments, o.Total)
		if err != nil {
			return err
		}
		now := s.now()
		o.Payments = append(o.Payments, alloc.toPayments(o, actor, key, nil, now)...)
		o.Status = model.OrderPaid
		o.PaidAt = &now
		o.UpdatedAt = now
		change = alloc.change
		return mapRepoErr(tx.Orders().Save(ctx, o), CodeOrderNotFound)
	})
	if err != nil {
		return nil, err
	}
	if !replayed {
		s.recordOrder(ctx, actor, "order.paid", o, map[string]any{"change": change.String(), "idempotency_key": key})
		s.enqueueReceipt(ctx, o)
		log.Info().Str("order_id", o.ID.String()).Str("total", o.Total.String()).Msg("order paid")
	}
	return &dto.PaymentResultResponse{Order: *orderToResponse(o), Change: change, Replayed: replayed}, nil
}

func (s *orderService) enqueueReceipt(ctx context.Context, o *model.Order) {
	if s.receipts == nil {
		return
	}
	if err := s.receipts.EnqueueReceipt(ctx, o.ID); err != nil {
		log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("receipt: enqueue failed")
	}
}

// ── Refund / Reopen ───────────────────────────────────────────────────────────

func (s *orderService) Refund(ctx context.Context, actor Actor, id uuid.UUID, req dto.RefundRequest) (*dto.OrderResponse, error) {
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, invalid("refund amount must be positive")
	}
	method := model.PaymentMethod(req.Method)
	if !validMethod(method) {
		return nil, invalid("unknown refund method %q", req.Method)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, invalid("a reason is required to refund")
	}
	o, err := s.mutateOrder(ctx, actor, id, mutateOpts{shiftOpen: true}, func(_ repository.Store, o *model.Order) error {
		if o.Status != model.OrderPaid {
			return precondition(CodeOrderNotPaid, "only paid orders can be refunded (order is %s)", o.Status)
		}
		remaining := o.RefundableRemaining()
		if !remaining.IsPositive() {
			return precondition(CodeOrderFullyRefunded, "order #%d is fully refunded", o.OrderNumber)
		}
		if amount.GreaterThan(remaining) {
			return recoverable(CodeRefundExceedsRemaining, "refund %s exceeds the refundable remainder %s",
				amount.StringFixed(money.Precision), remaining.StringFixed(money.Precision))
		}
		now := s.now()
		o.Refunds = append(o.Refunds, model.Refund{
			ID:        uuid.New(),
			OrderID:   o.ID,
			ShiftID:   o.ShiftID,
			Method:    method,
			Amount:    amount,
			Reason:    reason,
			CreatedBy: actor.CashierID,
			CreatedAt: now,
		})
		o.TotalRefunded = o.TotalRefunded.Add(amount)
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.refunded", o, map[string]any{
		"amount": amount.String(), "method": string(method), "reason": reason,
	})
	return orderToResponse(o), nil
}

func validMethod(m model.PaymentMethod) bool {
	for _, pm := range model.PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

func (s *orderService) Reopen(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error) {
	o, err := s.mutateOrder(ctx, actor, id, mutateOpts{shiftOpen: true}, func(_ repository.Store, o *model.Order) error {
		if o.Status != model.OrderPaid {
			return precondition(CodeOrderNotPaid, "only paid orders can be reopened (order is %s)", o.Status)
		}
		if len(o.Refunds) > 0 {
			return precondition(CodeOrderHasRefunds, "order #%d has refunds and cannot be reopened", o.OrderNumber)
		}
		now := s.now()
		for i := range o.Payments {
			if !o.Payments[i].Reversed {
				o.Payments[i].Reversed = true
				o.Payments[i].ReversedAt = &now
			}
		}
		o.Status = model.OrderOpen
		o.PaidAt = nil
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.reopened", o, nil)
	return orderToResponse(o), nil
}

// ── Kitchen ───────────────────────────────────────────────────────────────────
// The ticket is published first; lines are stamped only once the kitchen has
// accepted it. A failed publish changes nothing.

func (s *orderService) SendToKitchen(ctx context.Context, actor Actor, id uuid.UUID) (*dto.KitchenResponse, error) {
	o, err := s.loadOrder(ctx, s.store.Orders(), actor, id)
	if err != nil {
		return nil, err
	}
	if o.OrderType != model.OrderDineIn {
		return nil, precondition(CodeNotDineIn, "only dine-in orders go to the kitchen display")
	}
	if !o.Status.Active() {
		return nil, precondition(CodeOrderNotOpen, "order #%d is %s", o.OrderNumber, o.Status)
	}
	pending := o.PendingKitchenLines()
	if len(pending) == 0 {
		return nil, precondition(CodeNothingToSend, "order #%d has no unsent lines", o.OrderNumber)
	}

	now := s.now()
	ticket := model.NewKitchenTicket(o, pending, now)
	if s.kitchen != nil {
		if err := s.kitchen.SendToKitchen(ctx, ticket); err != nil {
			log.Error().Err(err).Str("order_id", o.ID.String()).Msg("kitchen: send failed")
			return nil, &Error{Kind: KindRecoverable, Code: CodeKitchenUnavailable, Message: "kitchen display unreachable, try again", Err: err}
		}
	}

	sent := make(map[uuid.UUID]bool, len(ticket.Lines))
	for _, l := range ticket.Lines {
		sent[l.LineID] = true
	}
	stamped := 0
	o, err = s.mutateOrder(ctx, actor, id, mutateOpts{}, func(_ repository.Store, o *model.Order) error {
		stamped = 0
		for i := range o.Lines {
			l := &o.Lines[i]
			if sent[l.ID] && l.KitchenSentAt == nil {
				l.KitchenSentAt = &now
				stamped++
			}
		}
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.sent_to_kitchen", o, map[string]any{"lines": stamped})
	return &dto.KitchenResponse{Order: *orderToResponse(o), SentLines: stamped}, nil
}

// ── Start new order ───────────────────────────────────────────────────────────

func (s *orderService) StartNewOrder(ctx context.Context, actor Actor, req dto.StartNewOrderRequest) (*dto.StartNewOrderResponse, error) {
	d, err := draftFromDTO(req.Draft)
	if err != nil {
		return nil, err
	}
	resp := &dto.StartNewOrderResponse{Draft: draftToDTO(d)}
	if req.CurrentOrderID != nil {
		id, err := parseID("current_order_id", *req.CurrentOrderID)
		if err != nil {
			return nil, err
		}
		parked, err := s.park(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		resp.Parked = parked
	}
	return resp, nil
}

// park takes the order the cashier is leaving out of the way: held when it
// has live lines, cancelled when empty. Anything but an open order is left
// alone and nil is returned.
func (c *core) park(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderSummary, error) {
	var action string
	o, err := c.mutateOrder(ctx, actor, id, mutateOpts{}, func(_ repository.Store, o *model.Order) error {
		if o.Status != model.OrderOpen {
			return errNothingToPark
		}
		if o.ActiveLineCount() > 0 {
			action = "order.held"
			return c.hold(o)
		}
		action = "order.cancelled"
		return c.cancel(o, AutoDiscardReason)
	})
	if errors.Is(err, errNothingToPark) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.recordOrder(ctx, actor, action, o, map[string]any{"parked": true})
	sum := orderToSummary(o)
	return &sum, nil
}

var errNothingToPark = errors.New("nothing to park")

// ── Sweeper ───────────────────────────────────────────────────────────────────

func (s *orderService) DiscardStaleEmpty(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	orders, err := s.store.Orders().List(ctx, repository.OrderFilter{
		Statuses:      []model.OrderStatus{model.OrderOpen},
		CreatedBefore: &cutoff,
		Limit:         500,
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range orders {
		if orders[i].ActiveLineCount() > 0 {
			continue
		}
		system := Actor{BranchID: orders[i].BranchID, RestaurantID: orders[i].RestaurantID}
		o, err := s.mutateOrder(ctx, system, orders[i].ID, mutateOpts{}, func(_ repository.Store, o *model.Order) error {
			if o.Status != model.OrderOpen || o.ActiveLineCount() > 0 {
				return errNothingToPark
			}
			return s.cancel(o, AutoDiscardReason)
		})
		if errors.Is(err, errNothingToPark) {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("order_id", orders[i].ID.String()).Msg("sweeper: discard failed")
			continue
		}
		s.recordOrder(ctx, system, "order.cancelled", o, map[string]any{"sweeper": true})
		n++
	}
	return n, nil
}
