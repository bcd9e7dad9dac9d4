package service

import (
	"errors"
	"testing"
	"time"

	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── CommitItem ───────────────────────────────────────────────────────────────

func TestCommitItem_DraftCreatesOrderWithFirstLine(t *testing.T) {
	f := newFixture(t)

	o := f.newOrder(takeaway(), f.burger, 2)

	assert.Equal(t, "open", o.Status)
	assert.Equal(t, 1, o.OrderNumber)
	assert.Equal(t, f.shiftID.String(), o.ShiftID)
	require.Len(t, o.Lines, 1)
	decEq(t, "10.000", o.Subtotal)
	decEq(t, "1.000", o.ServiceCharge)
	decEq(t, "1.760", o.TaxAmount)
	decEq(t, "12.760", o.Total)
	assert.Equal(t, []string{"order.created", "order.line_added"}, f.audit.actions(uuid.MustParse(o.ID)))
}

func TestCommitItem_OrderNumbersAreSequential(t *testing.T) {
	f := newFixture(t)
	a := f.newOrder(takeaway(), f.fries, 1)
	b := f.newOrder(takeaway(), f.fries, 1)
	c := f.newOrder(dineIn(uuid.New()), f.fries, 1)
	assert.Equal(t, []int{1, 2, 3}, []int{a.OrderNumber, b.OrderNumber, c.OrderNumber})
}

func TestCommitItem_WithoutOpenShiftCreatesNothing(t *testing.T) {
	f := newFixture(t)
	stranger := f.cashier()

	_, err := f.orders.CommitItem(f.ctx, stranger, dto.CommitItemRequest{
		Draft: takeaway(), MenuItemID: f.burger.ID.String(), Quantity: 1,
	})

	requireKind(t, err, KindPrecondition, CodeNoOpenShift)
	all, err := f.store.Orders().List(f.ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCommitItem_ModifierDeltasAreFrozenIntoUnitPrice(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.fries, 1)

	o = f.add(o.ID, f.burger, 2, f.cheese)

	require.Len(t, o.Lines, 2)
	decEq(t, "5.250", o.Lines[1].UnitPrice)
	decEq(t, "10.500", o.Lines[1].Amount)
	decEq(t, "13.500", o.Subtotal)
	assert.Equal(t, "Cheese", o.Lines[1].Modifiers[0].Name)
}

func TestCommitItem_Rejections(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.fries, 1)
	table := uuid.New().String()

	cases := []struct {
		name string
		req  dto.CommitItemRequest
		kind ErrorKind
		code string
	}{
		{"unavailable item", dto.CommitItemRequest{OrderID: &o.ID, MenuItemID: f.soup.ID.String(), Quantity: 1}, KindPrecondition, CodeMenuItemUnavailable},
		{"unknown item", dto.CommitItemRequest{OrderID: &o.ID, MenuItemID: uuid.NewString(), Quantity: 1}, KindNotFound, CodeMenuItemNotFound},
		{"foreign modifier", dto.CommitItemRequest{OrderID: &o.ID, MenuItemID: f.fries.ID.String(), Quantity: 1, ModifierIDs: []string{f.cheese.String()}}, KindNotFound, CodeModifierNotFound},
		{"zero quantity", dto.CommitItemRequest{OrderID: &o.ID, MenuItemID: f.fries.ID.String(), Quantity: 0}, KindInvalid, CodeInvalidInput},
		{"takeaway on a table", dto.CommitItemRequest{Draft: &dto.DraftTicket{OrderType: "takeaway", TableID: &table}, MenuItemID: f.fries.ID.String(), Quantity: 1}, KindInvalid, CodeInvalidInput},
		{"neither order nor draft", dto.CommitItemRequest{MenuItemID: f.fries.ID.String(), Quantity: 1}, KindInvalid, CodeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orders.CommitItem(f.ctx, f.actor, tc.req)
			requireKind(t, err, tc.kind, tc.code)
		})
	}
	assert.Len(t, f.load(o.ID).Lines, 1)
}

func TestCommitItem_OtherBranchSeesNotFound(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.fries, 1)
	elsewhere := Actor{CashierID: uuid.New(), BranchID: uuid.New(), RestaurantID: f.restaurantID}

	_, err := f.orders.GetOrder(f.ctx, elsewhere, uuid.MustParse(o.ID))
	requireKind(t, err, KindNotFound, CodeOrderNotFound)
}

// ── Lines ────────────────────────────────────────────────────────────────────

func TestVoidLine_KeepsLineButDropsItFromTotals(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.burger, 1)
	o = f.add(o.ID, f.fries, 1)
	burgerLine := uuid.MustParse(o.Lines[0].ID)

	o, err := f.orders.VoidLine(f.ctx, f.actor, uuid.MustParse(o.ID), burgerLine, "customer changed mind")
	require.NoError(t, err)

	require.Len(t, o.Lines, 2)
	assert.True(t, o.Lines[0].Voided)
	decEq(t, "3.000", o.Subtotal)

	_, err = f.orders.VoidLine(f.ctx, f.actor, uuid.MustParse(o.ID), burgerLine, "again")
	requireKind(t, err, KindPrecondition, CodeLineVoided)
}

func TestUpdateLineQuantity(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(dineIn(uuid.New()), f.tea, 1)
	id, line := uuid.MustParse(o.ID), uuid.MustParse(o.Lines[0].ID)

	o, err := f.orders.UpdateLineQuantity(f.ctx, f.actor, id, line, 3)
	require.NoError(t, err)
	decEq(t, "6.000", o.Subtotal)

	_, err = f.orders.UpdateLineQuantity(f.ctx, f.actor, id, line, 0)
	requireKind(t, err, KindInvalid, CodeInvalidInput)

	_, err = f.orders.SendToKitchen(f.ctx, f.actor, id)
	require.NoError(t, err)
	_, err = f.orders.UpdateLineQuantity(f.ctx, f.actor, id, line, 1)
	requireKind(t, err, KindPrecondition, CodeLineAlreadySent)
}

// ── Discount ─────────────────────────────────────────────────────────────────

func TestApplyDiscount_Percent(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.burger, 2)

	o, err := f.orders.ApplyDiscount(f.ctx, f.actor, uuid.MustParse(o.ID), dto.DiscountRequest{Type: "percent", Value: dec("10")})
	require.NoError(t, err)

	decEq(t, "1.000", o.DiscountAmount)
	decEq(t, "0.900", o.ServiceCharge)
	decEq(t, "1.584", o.TaxAmount)
	decEq(t, "11.484", o.Total)

	o, err = f.orders.RemoveDiscount(f.ctx, f.actor, uuid.MustParse(o.ID))
	require.NoError(t, err)
	assert.Nil(t, o.Discount)
	decEq(t, "12.760", o.Total)
}

func TestApplyDiscount_FixedAboveSubtotalIsRecoverable(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.burger, 1)

	_, err := f.orders.ApplyDiscount(f.ctx, f.actor, uuid.MustParse(o.ID), dto.DiscountRequest{Type: "fixed", Value: dec("6")})
	requireKind(t, err, KindRecoverable, CodeDiscountExceeds)
	assert.Nil(t, f.load(o.ID).Discount())

	_, err = f.orders.ApplyDiscount(f.ctx, f.actor, uuid.MustParse(o.ID), dto.DiscountRequest{Type: "percent", Value: dec("150")})
	requireKind(t, err, KindInvalid, CodeInvalidInput)
}

func TestApplyDiscount_FixedIsClampedWhenLinesShrink(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.burger, 1)
	o = f.add(o.ID, f.fries, 1)
	id := uuid.MustParse(o.ID)

	_, err := f.orders.ApplyDiscount(f.ctx, f.actor, id, dto.DiscountRequest{Type: "fixed", Value: dec("6")})
	require.NoError(t, err)

	o, err = f.orders.VoidLine(f.ctx, f.actor, id, uuid.MustParse(o.Lines[0].ID), "sold out")
	require.NoError(t, err)

	decEq(t, "3.000", o.Subtotal)
	decEq(t, "3.000", o.DiscountAmount)
	decEq(t, "0", o.Total)
	assert.False(t, o.Total.IsNegative())
}

// ── Status transitions ───────────────────────────────────────────────────────

func TestHoldAndResume(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.fries, 1)
	id := uuid.MustParse(o.ID)

	o, err := f.orders.Hold(f.ctx, f.actor, id)
	require.NoError(t, err)
	assert.Equal(t, "held", o.Status)

	_, err = f.orders.Hold(f.ctx, f.actor, id)
	requireKind(t, err, KindPrecondition, CodeOrderNotOpen)

	_, err = f.orders.VoidLine(f.ctx, f.actor, id, uuid.MustParse(o.Lines[0].ID), "nope")
	requireKind(t, err, KindPrecondition, CodeOrderNotOpen)

	o, err = f.orders.Resume(f.ctx, f.actor, id)
	require.NoError(t, err)
	assert.Equal(t, "open", o.Status)

	_, err = f.orders.Resume(f.ctx, f.actor, id)
	requireKind(t, err, KindPrecondition, CodeOrderNotHeld)
}

func TestHold_EmptyOrderIsRejected(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.fries, 1)
	id := uuid.MustParse(o.ID)
	_, err := f.orders.VoidLine(f.ctx, f.actor, id, uuid.MustParse(o.Lines[0].ID), "wrong item")
	require.NoError(t, err)

	_, err = f.orders.Hold(f.ctx, f.actor, id)
	requireKind(t, err, KindPrecondition, CodeOrderEmpty)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.fries, 1)
	id := uuid.MustParse(o.ID)

	_, err := f.orders.Cancel(f.ctx, f.actor, id, "  ")
	requireKind(t, err, KindInvalid, CodeInvalidInput)

	o, err = f.orders.Cancel(f.ctx, f.actor, id, "customer left")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", o.Status)
	assert.Equal(t, "customer left", *o.CancelReason)

	_, err = f.orders.Cancel(f.ctx, f.actor, id, "twice")
	requireKind(t, err, KindPrecondition, CodeOrderTerminal)
}

func TestVoidAndRefundAreAsymmetric(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.burger, 2)
	id := uuid.MustParse(o.ID)

	// an unpaid order cannot be refunded
	_, err := f.orders.Refund(f.ctx, f.actor, id, dto.RefundRequest{Amount: dec("1"), Method: "cash", Reason: "cold"})
	requireKind(t, err, KindPrecondition, CodeOrderNotPaid)

	f.pay(o.ID, "k1", cash("12.760"))

	// a paid order cannot be voided
	_, err = f.orders.Void(f.ctx, f.actor, id, "mistake")
	requireKind(t, err, KindPrecondition, CodeOrderPaidUseRefund)
	assert.Equal(t, model.OrderPaid, f.load(o.ID).Status)
}

func TestVoid_OnlyFromOpen(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.fries, 1)
	id := uuid.MustParse(o.ID)

	_, err := f.orders.Hold(f.ctx, f.actor, id)
	require.NoError(t, err)
	_, err = f.orders.Void(f.ctx, f.actor, id, "test")
	requireKind(t, err, KindPrecondition, CodeOrderNotOpen)

	_, err = f.orders.Resume(f.ctx, f.actor, id)
	require.NoError(t, err)
	o, err = f.orders.Void(f.ctx, f.actor, id, "test order")
	require.NoError(t, err)
	assert.Equal(t, "voided", o.Status)
}

// ── Pay ──────────────────────────────────────────────────────────────────────

func TestPay_SplitPaymentWithChange(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.burger, 2)

	res := f.pay(o.ID, "k1", card("5"), cash("10"))

	assert.False(t, res.Replayed)
	assert.Equal(t, "paid", res.Order.Status)
	assert.NotNil(t, res.Order.PaidAt)
	decEq(t, "2.240", res.Change)
	require.Len(t, res.Order.Payments, 2)
	decEq(t, "5", res.Order.Payments[0].Amount)
	decEq(t, "7.760", res.Order.Payments[1].Amount)
	assert.Equal(t, []uuid.UUID{uuid.MustParse(o.ID)}, f.receipts.ids)
}

func TestPay_IsAtMostOnce(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.burger, 2)
	first := f.pay(o.ID, "k1", cash("20"))

	again := f.pay(o.ID, "k1", cash("20"))
	assert.True(t, again.Replayed)
	decEq(t, first.Change.String(), again.Change)
	assert.Len(t, f.load(o.ID).Payments, 1)
	assert.Len(t, f.receipts.ids, 1)

	_, err := f.orders.Pay(f.ctx, f.actor, uuid.MustParse(o.ID), dto.PayRequest{Payments: []dto.PaymentSplit{cash("20")}, IdempotencyKey: "k2"})
	requireKind(t, err, KindPrecondition, CodeOrderAlreadyPaid)
	assert.Len(t, f.load(o.ID).Payments, 1)
}

func TestPay_RecoverableFailuresLeaveOrderOpen(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.burger, 2)
	id := uuid.MustParse(o.ID)

	_, err := f.orders.Pay(f.ctx, f.actor, id, dto.PayRequest{Payments: []dto.PaymentSplit{cash("10")}, IdempotencyKey: "a"})
	requireKind(t, err, KindRecoverable, CodePaymentInsufficient)

	_, err = f.orders.Pay(f.ctx, f.actor, id, dto.PayRequest{Payments: []dto.PaymentSplit{card("13")}, IdempotencyKey: "b"})
	requireKind(t, err, KindRecoverable, CodeNonCashExceedsTotal)

	stored := f.load(o.ID)
	assert.Equal(t, model.OrderOpen, stored.Status)
	assert.Empty(t, stored.Payments)
	assert.Empty(t, f.receipts.ids)
}

func TestPay_EmptyOrderIsRejected(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.fries, 1)
	id := uuid.MustParse(o.ID)
	_, err := f.orders.VoidLine(f.ctx, f.actor, id, uuid.MustParse(o.Lines[0].ID), "wrong")
	require.NoError(t, err)

	_, err = f.orders.Pay(f.ctx, f.actor, id, dto.PayRequest{Payments: []dto.PaymentSplit{cash("1")}, IdempotencyKey: "a"})
	requireKind(t, err, KindPrecondition, CodeOrderEmpty)
}

func TestPay_VersionConflictIsRetryable(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.fries, 1)
	id := uuid.MustParse(o.ID)
	f.store.FailNextSave(id, repository.ErrVersionConflict)

	_, err := f.orders.Pay(f.ctx, f.actor, id, dto.PayRequest{Payments: []dto.PaymentSplit{cash("5")}, IdempotencyKey: "a"})
	requireKind(t, err, KindConflict, CodeConcurrentUpdate)
	assert.True(t, errors.Is(err, repository.ErrVersionConflict))
	assert.Equal(t, model.OrderOpen, f.load(o.ID).Status)

	res := f.pay(o.ID, "a", cash("5"))
	assert.False(t, res.Replayed)
}

// ── Refund / Reopen ──────────────────────────────────────────────────────────

func TestRefund_PartialRefundsAccumulate(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.burger, 2)
	id := uuid.MustParse(o.ID)
	f.pay(o.ID, "k", cash("12.760"))

	refund := func(amount string) (*dto.OrderResponse, error) {
		return f.orders.Refund(f.ctx, f.actor, id, dto.RefundRequest{Amount: dec(amount), Method: "cash", Reason: "cold food"})
	}

	o, err := refund("5")
	require.NoError(t, err)
	decEq(t, "5", o.TotalRefunded)

	_, err = refund("8")
	requireKind(t, err, KindRecoverable, CodeRefundExceedsRemaining)

	o, err = refund("7.760")
	require.NoError(t, err)
	decEq(t, "12.760", o.TotalRefunded)
	assert.Len(t, o.Refunds, 2)

	_, err = refund("1")
	requireKind(t, err, KindPrecondition, CodeOrderFullyRefunded)
}

func TestReopen(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.burger, 1)
	id := uuid.MustParse(o.ID)
	f.pay(o.ID, "k1", cash("10"))

	o, err := f.orders.Reopen(f.ctx, f.actor, id)
	require.NoError(t, err)
	assert.Equal(t, "open", o.Status)
	assert.Nil(t, o.PaidAt)
	require.Len(t, o.Payments, 1)
	assert.True(t, o.Payments[0].Reversed)

	// the old key no longer replays; the order can be paid again
	res := f.pay(o.ID, "k1", cash("10"))
	assert.False(t, res.Replayed)

	_, err = f.orders.Refund(f.ctx, f.actor, id, dto.RefundRequest{Amount: dec("1"), Method: "cash", Reason: "late"})
	require.NoError(t, err)
	_, err = f.orders.Reopen(f.ctx, f.actor, id)
	requireKind(t, err, KindPrecondition, CodeOrderHasRefunds)
}

// ── Kitchen ──────────────────────────────────────────────────────────────────

func TestSendToKitchen(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(dineIn(uuid.New()), f.burger, 1)
	o = f.add(o.ID, f.tea, 2, f.large)
	id := uuid.MustParse(o.ID)

	res, err := f.orders.SendToKitchen(f.ctx, f.actor, id)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SentLines)
	require.Len(t, f.kitchen.tickets, 1)
	assert.Equal(t, []string{"Large"}, f.kitchen.tickets[0].Lines[1].Modifiers)
	for _, l := range res.Order.Lines {
		assert.NotNil(t, l.KitchenSentAt)
	}

	_, err = f.orders.SendToKitchen(f.ctx, f.actor, id)
	requireKind(t, err, KindPrecondition, CodeNothingToSend)

	f.add(o.ID, f.fries, 1)
	res, err = f.orders.SendToKitchen(f.ctx, f.actor, id)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SentLines)
}

func TestSendToKitchen_FailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(dineIn(uuid.New()), f.burger, 1)
	f.kitchen.err = errors.New("broker down")

	_, err := f.orders.SendToKitchen(f.ctx, f.actor, uuid.MustParse(o.ID))
	requireKind(t, err, KindRecoverable, CodeKitchenUnavailable)
	assert.Nil(t, f.load(o.ID).Lines[0].KitchenSentAt)
}

func TestSendToKitchen_TakeawayIsRejected(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.burger, 1)

	_, err := f.orders.SendToKitchen(f.ctx, f.actor, uuid.MustParse(o.ID))
	requireKind(t, err, KindPrecondition, CodeNotDineIn)
	assert.Empty(t, f.kitchen.tickets)
}

// ── Start new order / sweeper ────────────────────────────────────────────────

func TestStartNewOrder_HoldsOrDiscardsCurrent(t *testing.T) {
	f := newFixture(t)

	withItems := f.newOrder(takeaway(), f.fries, 1)
	res, err := f.orders.StartNewOrder(f.ctx, f.actor, dto.StartNewOrderRequest{CurrentOrderID: &withItems.ID, Draft: *takeaway()})
	require.NoError(t, err)
	require.NotNil(t, res.Parked)
	assert.Equal(t, "held", res.Parked.Status)
	assert.Equal(t, "takeaway", res.Draft.OrderType)

	empty := f.newOrder(takeaway(), f.fries, 1)
	_, err = f.orders.VoidLine(f.ctx, f.actor, uuid.MustParse(empty.ID), uuid.MustParse(empty.Lines[0].ID), "wrong")
	require.NoError(t, err)
	res, err = f.orders.StartNewOrder(f.ctx, f.actor, dto.StartNewOrderRequest{CurrentOrderID: &empty.ID, Draft: *takeaway()})
	require.NoError(t, err)
	require.NotNil(t, res.Parked)
	assert.Equal(t, "cancelled", res.Parked.Status)
	assert.Equal(t, AutoDiscardReason, *f.load(empty.ID).CancelReason)

	// parking a held order is a no-op
	res, err = f.orders.StartNewOrder(f.ctx, f.actor, dto.StartNewOrderRequest{CurrentOrderID: &withItems.ID, Draft: *takeaway()})
	require.NoError(t, err)
	assert.Nil(t, res.Parked)
}

func TestDiscardStaleEmpty(t *testing.T) {
	f := newFixture(t)
	start := time.Now()
	f.clockAt(start)

	empty := f.newOrder(takeaway(), f.fries, 1)
	_, err := f.orders.VoidLine(f.ctx, f.actor, uuid.MustParse(empty.ID), uuid.MustParse(empty.Lines[0].ID), "wrong")
	require.NoError(t, err)
	busy := f.newOrder(takeaway(), f.fries, 1)

	f.clockAt(start.Add(30 * time.Minute))
	n, err := f.orders.DiscardStaleEmpty(f.ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clockAt(start.Add(3 * time.Hour))
	n, err = f.orders.DiscardStaleEmpty(f.ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.OrderCancelled, f.load(empty.ID).Status)
	assert.Equal(t, model.OrderOpen, f.load(busy.ID).Status)
}

// ── Audit ────────────────────────────────────────────────────────────────────

func TestAuditFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(takeaway(), f.fries, 1)
	f.audit.err = errors.New("sink down")

	_, err := f.orders.Hold(f.ctx, f.actor, uuid.MustParse(o.ID))
	require.NoError(t, err)
	assert.Equal(t, model.OrderHeld, f.load(o.ID).Status)
}
