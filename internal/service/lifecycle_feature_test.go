package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/money"
	"restopos/internal/repository/memory"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type lifecycleContext struct {
	ctx          context.Context
	store        *memory.Store
	rates        money.Rates
	restaurantID uuid.UUID
	branchID     uuid.UUID

	orders OrderService
	tables TableService
	shifts ShiftService

	cashiers map[string]Actor
	shiftOf  map[string]uuid.UUID
	menu     map[string]model.MenuItem
	named    map[string]uuid.UUID
	tableIDs map[string]uuid.UUID

	err    error
	change decimal.Decimal
	closed *dto.ZReportResponse
}

func (c *lifecycleContext) reset() {
	c.ctx = context.Background()
	c.store = memory.New()
	c.rates = money.Rates{}
	c.restaurantID = uuid.New()
	c.branchID = uuid.New()
	c.cashiers = map[string]Actor{}
	c.shiftOf = map[string]uuid.UUID{}
	c.menu = map[string]model.MenuItem{}
	c.named = map[string]uuid.UUID{}
	c.tableIDs = map[string]uuid.UUID{}
	c.err = nil
	c.change = decimal.Zero
	c.closed = nil
	c.wire()
}

func (c *lifecycleContext) wire() {
	audit := &recordingAudit{}
	c.orders = NewOrderService(c.store, c.store, c.rates, audit, &fakeKitchen{}, &fakeReceipts{})
	c.tables = NewTableService(c.store, c.rates, audit, &fakeReceipts{})
	c.shifts = NewShiftService(c.store, audit)
}

func (c *lifecycleContext) actor(name string) Actor {
	a, ok := c.cashiers[name]
	if !ok {
		a = Actor{CashierID: uuid.New(), BranchID: c.branchID, RestaurantID: c.restaurantID}
		c.cashiers[name] = a
	}
	return a
}

func (c *lifecycleContext) table(name string) uuid.UUID {
	id, ok := c.tableIDs[name]
	if !ok {
		id = uuid.New()
		c.tableIDs[name] = id
	}
	return id
}

func (c *lifecycleContext) order(name string) (uuid.UUID, error) {
	id, ok := c.named[name]
	if !ok {
		return uuid.Nil, fmt.Errorf("no order named %q", name)
	}
	return id, nil
}

func (c *lifecycleContext) loadOrder(name string) (*model.Order, error) {
	id, err := c.order(name)
	if err != nil {
		return nil, err
	}
	return c.store.Orders().FindByID(c.ctx, id)
}

// ── Given ────────────────────────────────────────────────────────────────────

func (c *lifecycleContext) ratesOf(service, tax int) error {
	c.rates = money.Rates{
		ServiceCharge: decimal.NewFromInt(int64(service)).Div(decimal.NewFromInt(100)),
		Tax:           decimal.NewFromInt(int64(tax)).Div(decimal.NewFromInt(100)),
	}
	c.wire()
	return nil
}

func (c *lifecycleContext) theMenu(table *godog.Table) error {
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		price, err := decimal.NewFromString(row.Cells[1].Value)
		if err != nil {
			return err
		}
		item := model.MenuItem{
			ID:           uuid.New(),
			RestaurantID: c.restaurantID,
			Name:         row.Cells[0].Value,
			BasePrice:    price,
			Available:    true,
		}
		c.store.AddMenuItem(item)
		c.menu[item.Name] = item
	}
	return nil
}

func (c *lifecycleContext) cashierOpenedShift(name, opening string) error {
	res, err := c.shifts.Open(c.ctx, c.actor(name), dto.OpenShiftRequest{OpeningCash: decimal.RequireFromString(opening)})
	if err != nil {
		return err
	}
	c.shiftOf[name] = uuid.MustParse(res.Shift.ID)
	return nil
}

func (c *lifecycleContext) commitFirst(cashier, name string, draft *dto.DraftTicket, qty int, item string) error {
	m, ok := c.menu[item]
	if !ok {
		return fmt.Errorf("no menu item %q", item)
	}
	o, err := c.orders.CommitItem(c.ctx, c.actor(cashier), dto.CommitItemRequest{
		Draft: draft, MenuItemID: m.ID.String(), Quantity: qty,
	})
	if err != nil {
		return err
	}
	c.named[name] = uuid.MustParse(o.ID)
	return nil
}

func (c *lifecycleContext) startsTakeaway(cashier, name string, qty int, item string) error {
	return c.commitFirst(cashier, name, &dto.DraftTicket{OrderType: "takeaway"}, qty, item)
}

func (c *lifecycleContext) startsDineIn(cashier, name, table string, qty int, item string) error {
	id := c.table(table).String()
	return c.commitFirst(cashier, name, &dto.DraftTicket{OrderType: "dine_in", TableID: &id}, qty, item)
}

// ── When ─────────────────────────────────────────────────────────────────────
// Actions record their error instead of failing the step so that a later
// "the operation fails" step can inspect it.

func (c *lifecycleContext) appliesPercentDiscount(cashier string, value int, name string) error {
	id, err := c.order(name)
	if err != nil {
		return err
	}
	_, c.err = c.orders.ApplyDiscount(c.ctx, c.actor(cashier), id, dto.DiscountRequest{Type: "percent", Value: decimal.NewFromInt(int64(value))})
	return nil
}

func (c *lifecycleContext) merges(cashier, a, b string) error {
	ida, err := c.order(a)
	if err != nil {
		return err
	}
	idb, err := c.order(b)
	if err != nil {
		return err
	}
	_, c.err = c.tables.Merge(c.ctx, c.actor(cashier), dto.MergeRequest{OrderAID: ida.String(), OrderBID: idb.String()})
	return nil
}

func (c *lifecycleContext) splits(cashier string, qty int, item, from, into string) error {
	o, err := c.loadOrder(from)
	if err != nil {
		return err
	}
	var lineID uuid.UUID
	for _, l := range o.ActiveLines() {
		if l.Name == item {
			lineID = l.ID
		}
	}
	if lineID == uuid.Nil {
		return fmt.Errorf("order %q has no %q line", from, item)
	}
	res, err := c.tables.Split(c.ctx, c.actor(cashier), o.ID, dto.SplitRequest{
		Slices: []dto.SplitSlice{{LineID: lineID.String(), Quantity: qty}},
	})
	if err != nil {
		c.err = err
		return nil
	}
	c.named[into] = uuid.MustParse(res.New.ID)
	return nil
}

func (c *lifecycleContext) holds(cashier, name string) error {
	id, err := c.order(name)
	if err != nil {
		return err
	}
	_, c.err = c.orders.Hold(c.ctx, c.actor(cashier), id)
	return c.err
}

func (c *lifecycleContext) cancels(cashier, name string) error {
	id, err := c.order(name)
	if err != nil {
		return err
	}
	_, c.err = c.orders.Cancel(c.ctx, c.actor(cashier), id, "customer left")
	return nil
}

func (c *lifecycleContext) voids(cashier, name string) error {
	id, err := c.order(name)
	if err != nil {
		return err
	}
	_, c.err = c.orders.Void(c.ctx, c.actor(cashier), id, "entered by mistake")
	return nil
}

func (c *lifecycleContext) closesShift(cashier, declared string) error {
	c.closed, c.err = c.shifts.Close(c.ctx, c.actor(cashier), c.shiftOf[cashier], dto.CloseShiftRequest{
		ClosingCash: decimal.RequireFromString(declared),
	})
	return nil
}

func (c *lifecycleContext) pays(cashier, name, amount, key string) error {
	id, err := c.order(name)
	if err != nil {
		return err
	}
	res, err := c.orders.Pay(c.ctx, c.actor(cashier), id, dto.PayRequest{
		Payments:       []dto.PaymentSplit{{Method: "cash", Amount: decimal.RequireFromString(amount)}},
		IdempotencyKey: key,
	})
	c.err = err
	if err == nil {
		c.change = res.Change
	}
	return nil
}

func (c *lifecycleContext) refunds(cashier, amount, name string) error {
	id, err := c.order(name)
	if err != nil {
		return err
	}
	_, c.err = c.orders.Refund(c.ctx, c.actor(cashier), id, dto.RefundRequest{
		Amount: decimal.RequireFromString(amount), Method: "cash", Reason: "overcharged",
	})
	return nil
}

func (c *lifecycleContext) transfersFirstLine(cashier, from, to string) error {
	src, err := c.loadOrder(from)
	if err != nil {
		return err
	}
	dst, err := c.order(to)
	if err != nil {
		return err
	}
	lines := src.ActiveLines()
	if len(lines) == 0 {
		return fmt.Errorf("order %q has no lines", from)
	}
	_, c.err = c.tables.TransferLine(c.ctx, c.actor(cashier), src.ID, lines[0].ID, dto.TransferLineRequest{TargetOrderID: dst.String()})
	return nil
}

// ── Then ─────────────────────────────────────────────────────────────────────

func decimalIs(what, want string, got decimal.Decimal) error {
	if !decimal.RequireFromString(want).Equal(got) {
		return fmt.Errorf("%s: want %s, got %s", what, want, got)
	}
	return nil
}

func (c *lifecycleContext) orderHasTotals(name, subtotal, service, tax, total string) error {
	if c.err != nil {
		return fmt.Errorf("previous action failed: %w", c.err)
	}
	o, err := c.loadOrder(name)
	if err != nil {
		return err
	}
	return errors.Join(
		decimalIs("subtotal", subtotal, o.Subtotal),
		decimalIs("service charge", service, o.ServiceCharge),
		decimalIs("tax", tax, o.TaxAmount),
		decimalIs("total", total, o.Total),
	)
}

func (c *lifecycleContext) orderTotals(name, total string) error {
	o, err := c.loadOrder(name)
	if err != nil {
		return err
	}
	return decimalIs("total of "+name, total, o.Total)
}

func (c *lifecycleContext) ordersTogetherTotal(a, b, total string) error {
	oa, err := c.loadOrder(a)
	if err != nil {
		return err
	}
	ob, err := c.loadOrder(b)
	if err != nil {
		return err
	}
	return decimalIs("combined total", total, oa.Total.Add(ob.Total))
}

func (c *lifecycleContext) orderIs(name, status string) error {
	if c.err != nil {
		return fmt.Errorf("previous action failed: %w", c.err)
	}
	o, err := c.loadOrder(name)
	if err != nil {
		return err
	}
	if string(o.Status) != status {
		return fmt.Errorf("order %s is %s, want %s", name, o.Status, status)
	}
	return nil
}

func (c *lifecycleContext) tableIs(name, status string) error {
	res, err := c.tables.TableStatus(c.ctx, c.actor("ana"), dto.TableStatusFilter{TableIDs: []string{c.table(name).String()}})
	if err != nil {
		return err
	}
	if got := res.Tables[0].Status; got != status {
		return fmt.Errorf("table %s is %s, want %s", name, got, status)
	}
	return nil
}

func (c *lifecycleContext) operationFails(code string) error {
	if c.err == nil {
		return fmt.Errorf("expected failure %q, got success", code)
	}
	e, ok := AsError(c.err)
	if !ok || e.Code != code {
		return fmt.Errorf("expected failure %q, got %v", code, c.err)
	}
	c.err = nil
	return nil
}

func (c *lifecycleContext) changeIs(want string) error {
	if c.err != nil {
		return fmt.Errorf("payment failed: %w", c.err)
	}
	return decimalIs("change", want, c.change)
}

func (c *lifecycleContext) livePayments(name string, want int) error {
	o, err := c.loadOrder(name)
	if err != nil {
		return err
	}
	n := 0
	for _, p := range o.Payments {
		if !p.Reversed {
			n++
		}
	}
	if n != want {
		return fmt.Errorf("order %s has %d live payments, want %d", name, n, want)
	}
	return nil
}

func (c *lifecycleContext) shiftClosedWith(class string) error {
	if c.err != nil {
		return fmt.Errorf("close failed: %w", c.err)
	}
	if c.closed.Shift.Status != string(model.ShiftClosed) {
		return fmt.Errorf("shift is %s", c.closed.Shift.Status)
	}
	if got := c.closed.Shift.Variance.Classification; got != class {
		return fmt.Errorf("variance is %s, want %s", got, class)
	}
	return nil
}

func InitializeLifecycleScenario(ctx *godog.ScenarioContext) {
	c := &lifecycleContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^rates of (\d+)% service charge and (\d+)% tax$`, c.ratesOf)
	ctx.Step(`^the menu:$`, c.theMenu)
	ctx.Step(`^cashier "([^"]*)" has opened a shift with ([0-9.]+)$`, c.cashierOpenedShift)
	ctx.Step(`^"([^"]*)" starts a takeaway order "([^"]*)" with (\d+) "([^"]*)"$`, c.startsTakeaway)
	ctx.Step(`^"([^"]*)" starts a dine-in order "([^"]*)" at table "([^"]*)" with (\d+) "([^"]*)"$`, c.startsDineIn)

	// When steps
	ctx.Step(`^"([^"]*)" applies a percent discount of (\d+) to order "([^"]*)"$`, c.appliesPercentDiscount)
	ctx.Step(`^"([^"]*)" merges orders "([^"]*)" and "([^"]*)"$`, c.merges)
	ctx.Step(`^"([^"]*)" splits (\d+) "([^"]*)" from order "([^"]*)" into order "([^"]*)"$`, c.splits)
	ctx.Step(`^"([^"]*)" holds order "([^"]*)"$`, c.holds)
	ctx.Step(`^"([^"]*)" cancels order "([^"]*)"$`, c.cancels)
	ctx.Step(`^"([^"]*)" voids order "([^"]*)"$`, c.voids)
	ctx.Step(`^"([^"]*)" closes the shift declaring ([0-9.]+)$`, c.closesShift)
	ctx.Step(`^"([^"]*)" pays order "([^"]*)" with ([0-9.]+) cash under key "([^"]*)"$`, c.pays)
	ctx.Step(`^"([^"]*)" refunds ([0-9.]+) cash on order "([^"]*)"$`, c.refunds)
	ctx.Step(`^"([^"]*)" transfers the first line of order "([^"]*)" to order "([^"]*)"$`, c.transfersFirstLine)

	// Then steps
	ctx.Step(`^order "([^"]*)" has subtotal ([0-9.]+), service charge ([0-9.]+), tax ([0-9.]+) and total ([0-9.]+)$`, c.orderHasTotals)
	ctx.Step(`^order "([^"]*)" totals ([0-9.]+)$`, c.orderTotals)
	ctx.Step(`^orders "([^"]*)" and "([^"]*)" together total ([0-9.]+)$`, c.ordersTogetherTotal)
	ctx.Step(`^order "([^"]*)" is "([^"]*)"$`, c.orderIs)
	ctx.Step(`^table "([^"]*)" is "([^"]*)"$`, c.tableIs)
	ctx.Step(`^the operation fails with "([^"]*)"$`, c.operationFails)
	ctx.Step(`^the change is ([0-9.]+)$`, c.changeIs)
	ctx.Step(`^order "([^"]*)" has (\d+) live payments?$`, c.livePayments)
	ctx.Step(`^the shift is closed with a "([^"]*)" variance$`, c.shiftClosedWith)
}

func TestLifecycleFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeLifecycleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
