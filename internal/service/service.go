package service

import (
	"context"
	"time"

	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/money"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Actor is the identity context carried by every call: who is acting and
// where. It drives attribution and the branch visibility check.
type Actor struct {
	CashierID    uuid.UUID
	BranchID     uuid.UUID
	RestaurantID uuid.UUID
}

// Ticket is what the cashier is currently working on: either a Draft that
// exists only client-side, or a Persisted order.
type Ticket interface{ isTicket() }

type Draft struct {
	OrderType model.OrderType
	TableID   *uuid.UUID
	Customer  model.CustomerInfo
	Notes     string
}

type Persisted struct{ OrderID uuid.UUID }

func (Draft) isTicket()     {}
func (Persisted) isTicket() {}

// AuditSink receives transition records. It is fire-and-forget: a failing
// sink is logged and never rolls back the transition.
type AuditSink interface {
	Record(ctx context.Context, e model.AuditEntry) error
}

// KitchenNotifier delivers tickets to the kitchen display.
type KitchenNotifier interface {
	SendToKitchen(ctx context.Context, t model.KitchenTicket) error
}

// ReceiptQueue schedules receipt rendering for a paid order.
type ReceiptQueue interface {
	EnqueueReceipt(ctx context.Context, orderID uuid.UUID) error
}

// core is shared by the order, table and shift services.
type core struct {
	store repository.Store
	rates money.Rates
	audit AuditSink
	now   func() time.Time
}

func newCore(store repository.Store, rates money.Rates, audit AuditSink) core {
	return core{store: store, rates: rates, audit: audit, now: time.Now}
}

// loadOrder fetches an order visible to actor. Orders of another branch are
// reported as missing.
func (c *core) loadOrder(ctx context.Context, repo repository.OrderRepository, actor Actor, id uuid.UUID) (*model.Order, error) {
	o, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, CodeOrderNotFound)
	}
	if o.BranchID != actor.BranchID {
		return nil, newErr(KindNotFound, CodeOrderNotFound, "order %s not found", id)
	}
	return o, nil
}

// requireOpenShift fails unless shiftID names an open shift. The shift stays
// share-locked until tx ends, so a concurrent close waits for the write.
func (c *core) requireOpenShift(ctx context.Context, tx repository.Store, shiftID uuid.UUID) (*model.Shift, error) {
	sh, err := tx.Shifts().FindLocked(ctx, shiftID, repository.LockShare)
	if err != nil {
		return nil, mapRepoErr(err, CodeShiftNotFound)
	}
	if sh.Status != model.ShiftOpen {
		return nil, precondition(CodeShiftClosed, "shift %s is closed", shiftID)
	}
	return sh, nil
}

type mutateOpts struct {
	// shiftOpen requires the order's shift to still be open.
	shiftOpen bool
}

// mutateOrder is the read-modify-write unit for a single order: load, apply
// fn, save with the version check, all inside one transaction. fn is
// responsible for calling Recompute when it touches lines or the discount.
func (c *core) mutateOrder(ctx context.Context, actor Actor, id uuid.UUID, opts mutateOpts,
	fn func(tx repository.Store, o *model.Order) error) (*model.Order, error) {
	var out *model.Order
	err := c.store.Transaction(ctx, func(tx repository.Store) error {
		o, err := c.loadOrder(ctx, tx.Orders(), actor, id)
		if err != nil {
			return err
		}
		if opts.shiftOpen {
			if _, err := c.requireOpenShift(ctx, tx, o.ShiftID); err != nil {
				return err
			}
		}
		if err := fn(tx, o); err != nil {
			return err
		}
		if err := tx.Orders().Save(ctx, o); err != nil {
			return mapRepoErr(err, CodeOrderNotFound)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// newOrder allocates the next number and builds an open order on shift.
func (c *core) newOrder(ctx context.Context, tx repository.Store, actor Actor, shift *model.Shift) (*model.Order, error) {
	num, err := tx.Orders().NextOrderNumber(ctx, shift.RestaurantID)
	if err != nil {
		return nil, err
	}
	now := c.now()
	return &model.Order{
		ID:           uuid.New(),
		ShiftID:      shift.ID,
		BranchID:     shift.BranchID,
		RestaurantID: shift.RestaurantID,
		OrderNumber:  num,
		CreatedBy:    actor.CashierID,
		Status:       model.OrderOpen,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (c *core) recompute(o *model.Order) { o.Recompute(c.rates) }

// record sends an audit entry after the transition has committed.
func (c *core) record(ctx context.Context, actor Actor, action, entityType string, entityID uuid.UUID, details map[string]any) {
	if c.audit == nil {
		return
	}
	e := model.AuditEntry{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actor.CashierID,
		BranchID:   actor.BranchID,
		Details:    details,
		At:         c.now().UTC(),
	}
	if err := c.audit.Record(ctx, e); err != nil {
		log.Warn().Err(err).Str("action", action).Str("entity_id", entityID.String()).Msg("audit: record failed")
	}
}

func (c *core) recordOrder(ctx context.Context, actor Actor, action string, o *model.Order, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["order_number"] = o.OrderNumber
	details["status"] = string(o.Status)
	details["total"] = o.Total.String()
	c.record(ctx, actor, action, "order", o.ID, details)
}

// parseID parses a uuid from a request field.
func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalid("%s is not a valid id", field)
	}
	return id, nil
}

func parseOptionalID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := parseID(field, *raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// draftFromDTO validates a client draft.
func draftFromDTO(d dto.DraftTicket) (Draft, error) {
	t := model.OrderType(d.OrderType)
	if !t.Valid() {
		return Draft{}, invalid("order_type must be dine_in or takeaway")
	}
	tableID, err := parseOptionalID("table_id", d.TableID)
	if err != nil {
		return Draft{}, err
	}
	if t == model.OrderTakeaway && tableID != nil {
		return Draft{}, invalid("takeaway orders cannot be bound to a table")
	}
	if t == model.OrderDineIn && tableID == nil {
		return Draft{}, invalid("dine_in orders need a table_id")
	}
	out := Draft{OrderType: t, TableID: tableID, Notes: d.Notes}
	if d.Customer != nil {
		out.Customer = model.CustomerInfo{Name: d.Customer.Name, Phone: d.Customer.Phone, Email: d.Customer.Email}
	}
	return out, nil
}

func draftToDTO(d Draft) dto.DraftTicket {
	out := dto.DraftTicket{OrderType: string(d.OrderType), Notes: d.Notes}
	if d.TableID != nil {
		s := d.TableID.String()
		out.TableID = &s
	}
	if d.Customer.Name != nil || d.Customer.Phone != nil || d.Customer.Email != nil {
		out.Customer = &dto.CustomerInfo{Name: d.Customer.Name, Phone: d.Customer.Phone, Email: d.Customer.Email}
	}
	return out
}
