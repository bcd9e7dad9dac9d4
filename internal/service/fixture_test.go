package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/money"
	"restopos/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ── Fakes ────────────────────────────────────────────────────────────────────

type recordingAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	err     error
}

func (a *recordingAudit) Record(_ context.Context, e model.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, e)
	return nil
}

func (a *recordingAudit) actions(entityID uuid.UUID) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		if e.EntityID == entityID {
			out = append(out, e.Action)
		}
	}
	return out
}

type fakeKitchen struct {
	mu      sync.Mutex
	tickets []model.KitchenTicket
	err     error
}

func (k *fakeKitchen) SendToKitchen(_ context.Context, t model.KitchenTicket) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return k.err
	}
	k.tickets = append(k.tickets, t)
	return nil
}

type fakeReceipts struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *fakeReceipts) EnqueueReceipt(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

// ── Fixture ──────────────────────────────────────────────────────────────────

var testRates = money.Rates{
	ServiceCharge: decimal.RequireFromString("0.10"),
	Tax:           decimal.RequireFromString("0.16"),
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	audit    *recordingAudit
	kitchen  *fakeKitchen
	receipts *fakeReceipts

	orders OrderService
	tables TableService
	shifts ShiftService

	restaurantID uuid.UUID
	branchID     uuid.UUID
	actor        Actor
	shiftID      uuid.UUID

	// Menu: burger 5.000 (+cheese 0.250), fries 3.000, tea 2.000 (+large
	// 0.500), soup 4.000 (unavailable).
	burger, fries, tea, soup model.MenuItem
	cheese, large            uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:            t,
		ctx:          context.Background(),
		store:        memory.New(),
		audit:        &recordingAudit{},
		kitchen:      &fakeKitchen{},
		receipts:     &fakeReceipts{},
		restaurantID: uuid.New(),
		branchID:     uuid.New(),
	}
	f.actor = f.cashier()
	f.orders = NewOrderService(f.store, f.store, testRates, f.audit, f.kitchen, f.receipts)
	f.tables = NewTableService(f.store, testRates, f.audit, f.receipts)
	f.shifts = NewShiftService(f.store, f.audit)

	f.cheese, f.large = uuid.New(), uuid.New()
	f.burger = f.menuItem("Burger", "5.000", true, model.MenuModifier{ID: f.cheese, Name: "Cheese", PriceDelta: decimal.RequireFromString("0.250")})
	f.fries = f.menuItem("Fries", "3.000", true)
	f.tea = f.menuItem("Tea", "2.000", true, model.MenuModifier{ID: f.large, Name: "Large", PriceDelta: decimal.RequireFromString("0.500")})
	f.soup = f.menuItem("Soup", "4.000", false)

	f.shiftID = f.openShift(f.actor, "100.000")
	return f
}

// cashier returns a new identity at the fixture's branch.
func (f *fixture) cashier() Actor {
	return Actor{CashierID: uuid.New(), BranchID: f.branchID, RestaurantID: f.restaurantID}
}

func (f *fixture) menuItem(name, price string, available bool, mods ...model.MenuModifier) model.MenuItem {
	m := model.MenuItem{
		ID:           uuid.New(),
		RestaurantID: f.restaurantID,
		Name:         name,
		BasePrice:    decimal.RequireFromString(price),
		Available:    available,
	}
	for _, mod := range mods {
		mod.MenuItemID = m.ID
		m.Modifiers = append(m.Modifiers, mod)
	}
	f.store.AddMenuItem(m)
	return m
}

func (f *fixture) openShift(actor Actor, opening string) uuid.UUID {
	f.t.Helper()
	resp, err := f.shifts.Open(f.ctx, actor, dto.OpenShiftRequest{OpeningCash: decimal.RequireFromString(opening)})
	require.NoError(f.t, err)
	return uuid.MustParse(resp.Shift.ID)
}

func takeaway() *dto.DraftTicket { return &dto.DraftTicket{OrderType: "takeaway"} }

func dineIn(table uuid.UUID) *dto.DraftTicket {
	s := table.String()
	return &dto.DraftTicket{OrderType: "dine_in", TableID: &s}
}

// newOrder commits the first item of draft and returns the created order.
func (f *fixture) newOrder(draft *dto.DraftTicket, item model.MenuItem, qty int) *dto.OrderResponse {
	f.t.Helper()
	o, err := f.orders.CommitItem(f.ctx, f.actor, dto.CommitItemRequest{Draft: draft, MenuItemID: item.ID.String(), Quantity: qty})
	require.NoError(f.t, err)
	return o
}

func (f *fixture) add(orderID string, item model.MenuItem, qty int, mods ...uuid.UUID) *dto.OrderResponse {
	f.t.Helper()
	req := dto.CommitItemRequest{OrderID: &orderID, MenuItemID: item.ID.String(), Quantity: qty}
	for _, m := range mods {
		req.ModifierIDs = append(req.ModifierIDs, m.String())
	}
	o, err := f.orders.CommitItem(f.ctx, f.actor, req)
	require.NoError(f.t, err)
	return o
}

func (f *fixture) pay(orderID string, key string, splits ...dto.PaymentSplit) *dto.PaymentResultResponse {
	f.t.Helper()
	res, err := f.orders.Pay(f.ctx, f.actor, uuid.MustParse(orderID), dto.PayRequest{Payments: splits, IdempotencyKey: key})
	require.NoError(f.t, err)
	return res
}

func (f *fixture) load(id string) *model.Order {
	f.t.Helper()
	o, err := f.store.Orders().FindByID(f.ctx, uuid.MustParse(id))
	require.NoError(f.t, err)
	return o
}

func cash(amount string) dto.PaymentSplit {
	return dto.PaymentSplit{Method: "cash", Amount: decimal.RequireFromString(amount)}
}

func card(amount string) dto.PaymentSplit {
	return dto.PaymentSplit{Method: "card", Amount: decimal.RequireFromString(amount)}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// requireKind fails unless err is a domain error of kind with code.
func requireKind(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.True(t, errors.As(err, &e), "expected *service.Error, got %T: %v", err, err)
	require.Equal(t, kind, e.Kind, "kind for %v", err)
	require.Equal(t, code, e.Code)
}

// decEq compares decimals by value.
func decEq(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// clockAt pins the services' clock.
func (f *fixture) clockAt(at time.Time) {
	now := func() time.Time { return at }
	f.orders.(*orderService).now = now
	f.tables.(*tableService).now = now
	f.shifts.(*shiftService).now = now
}
