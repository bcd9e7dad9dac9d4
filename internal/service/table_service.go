package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/money"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TableService coordinates operations that span several orders or tables.
// Each of them commits as one transaction or not at all.
type TableService interface {
	ResolveTableClick(ctx context.Context, actor Actor, tableID uuid.UUID, req dto.TableClickRequest) (*dto.TableClickResponse, error)
	Merge(ctx context.Context, actor Actor, req dto.MergeRequest) (*dto.MergeResponse, error)
	Split(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.SplitRequest) (*dto.SplitResponse, error)
	Move(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.MoveRequest) (*dto.OrderResponse, error)
	TransferLine(ctx context.Context, actor Actor, sourceID, lineID uuid.UUID, req dto.TransferLineRequest) (*dto.TransferResponse, error)
	Checkout(ctx context.Context, actor Actor, tableID uuid.UUID, req dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	TableStatus(ctx context.Context, actor Actor, filter dto.TableStatusFilter) (*dto.TableStatusResponse, error)
}

type tableService struct {
	core
	receipts ReceiptQueue
}

func NewTableService(store repository.Store, rates money.Rates, audit AuditSink, receipts ReceiptQueue) TableService {
	return &tableService{core: newCore(store, rates, audit), receipts: receipts}
}

func activeOnTable(ctx context.Context, tx repository.Store, branchID, tableID uuid.UUID) ([]model.Order, error) {
	return tx.Orders().List(ctx, repository.OrderFilter{
		BranchID: &branchID,
		TableID:  &tableID,
		Statuses: []model.OrderStatus{model.OrderOpen, model.OrderHeld},
	})
}

// ── ResolveTableClick ─────────────────────────────────────────────────────────
// The order the cashier is leaving is parked first. An occupied table then
// yields its candidate orders for the cashier to pick from; a free table
// yields a draft bound to it.

func (s *tableService) ResolveTableClick(ctx context.Context, actor Actor, tableID uuid.UUID, req dto.TableClickRequest) (*dto.TableClickResponse, error) {
	resp := &dto.TableClickResponse{TableID: tableID.String(), Candidates: []dto.OrderSummary{}}

	if req.CurrentOrderID != nil {
		curID, err := parseID("current_order_id", *req.CurrentOrderID)
		if err != nil {
			return nil, err
		}
		cur, err := s.loadOrder(ctx, s.store.Orders(), actor, curID)
		if err != nil {
			return nil, err
		}
		if cur.TableID == nil || *cur.TableID != tableID {
			if resp.Parked, err = s.park(ctx, actor, curID); err != nil {
				return nil, err
			}
		}
	}

	orders, err := activeOnTable(ctx, s.store, actor.BranchID, tableID)
	if err != nil {
		return nil, err
	}
	ix := buildTableIndex(orders)
	resp.Status = ix.status(tableID)
	if len(orders) > 0 {
		for i := range orders {
			resp.Candidates = append(resp.Candidates, orderToSummary(&orders[i]))
		}
		return resp, nil
	}
	d := draftToDTO(Draft{OrderType: model.OrderDineIn, TableID: &tableID})
	resp.Draft = &d
	return resp, nil
}

// ── Merge ─────────────────────────────────────────────────────────────────────
// The earlier order is primary. The secondary's live lines move over, and the
// secondary is cancelled with a pointer to the primary, freeing its table.

func (s *tableService) Merge(ctx context.Context, actor Actor, req dto.MergeRequest) (*dto.MergeResponse, error) {
	aID, err := parseID("order_a_id", req.OrderAID)
	if err != nil {
		return nil, err
	}
	bID, err := parseID("order_b_id", req.OrderBID)
	if err != nil {
		return nil, err
	}
	if aID == bID {
		return nil, precondition(CodeSameOrder, "an order cannot be merged with itself")
	}

	var primary, secondary *model.Order
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		a, err := s.loadOrder(ctx, tx.Orders(), actor, aID)
		if err != nil {
			return err
		}
		b, err := s.loadOrder(ctx, tx.Orders(), actor, bID)
		if err != nil {
			return err
		}
		for _, o := range []*model.Order{a, b} {
			if o.Status == model.OrderPaid {
				return precondition(CodeMergePaidOrder, "order #%d is paid and cannot be merged", o.OrderNumber)
			}
			if !o.Status.Active() {
				return precondition(CodeOrderTerminal, "order #%d is %s", o.OrderNumber, o.Status)
			}
			if o.TableID == nil {
				return precondition(CodeMergeRequiresTables, "order #%d is not on a table", o.OrderNumber)
			}
		}
		if *a.TableID == *b.TableID {
			return precondition(CodeSameTable, "both orders are on the same table")
		}
		if err := lockTables(ctx, tx, *a.TableID, *b.TableID); err != nil {
			return err
		}

		primary, secondary = a, b
		if b.CreatedAt.Before(a.CreatedAt) || (b.CreatedAt.Equal(a.CreatedAt) && b.OrderNumber < a.OrderNumber) {
			primary, secondary = b, a
		}
		if _, err := s.requireOpenShift(ctx, tx, primary.ShiftID); err != nil {
			return err
		}

		now := s.now()
		kept := secondary.Lines[:0:0]
		for _, l := range secondary.Lines {
			if l.Voided {
				kept = append(kept, l)
				continue
			}
			primary.AppendLine(l)
		}
		secondary.Lines = kept
		reason := fmt.Sprintf("merged into order #%d", primary.OrderNumber)
		secondary.Status = model.OrderCancelled
		secondary.CancelReason = &reason
		secondary.MergedIntoID = &primary.ID
		secondary.UpdatedAt = now
		primary.UpdatedAt = now
		s.recompute(primary)
		s.recompute(secondary)

		// the secondary is written first so the moved line rows end up
		// pointing at the primary
		if err := tx.Orders().Save(ctx, secondary); err != nil {
			return mapRepoErr(err, CodeOrderNotFound)
		}
		return mapRepoErr(tx.Orders().Save(ctx, primary), CodeOrderNotFound)
	})
	if err != nil {
		return nil, err
	}

	s.recordOrder(ctx, actor, "order.merged", primary, map[string]any{"secondary_id": secondary.ID.String()})
	s.recordOrder(ctx, actor, "order.cancelled", secondary, map[string]any{"merged_into": primary.ID.String()})
	log.Info().Str("primary_id", primary.ID.String()).Str("secondary_id", secondary.ID.String()).Msg("orders merged")
	return &dto.MergeResponse{Primary: *orderToResponse(primary), Secondary: *orderToResponse(secondary)}, nil
}

// lockTables takes the table locks in a fixed order.
func lockTables(ctx context.Context, tx repository.Store, ids ...uuid.UUID) error {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	for _, id := range ids {
		if err := tx.LockTable(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ── Split ─────────────────────────────────────────────────────────────────────
// Each slice takes part of a line into a new order on the same shift. A slice
// covering the whole line moves the line itself; a partial one clones it.

func (s *tableService) Split(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.SplitRequest) (*dto.SplitResponse, error) {
	if len(req.Slices) == 0 {
		return nil, invalid("at least one slice is required")
	}
	want := make(map[uuid.UUID]int, len(req.Slices))
	var order []uuid.UUID
	for _, sl := range req.Slices {
		id, err := parseID("line_id", sl.LineID)
		if err != nil {
			return nil, err
		}
		if sl.Quantity < 1 {
			return nil, invalid("slice quantity must be at least 1")
		}
		if _, seen := want[id]; !seen {
			order = append(order, id)
		}
		want[id] += sl.Quantity
	}

	var orig, split *model.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		o, err := s.loadOrder(ctx, tx.Orders(), actor, orderID)
		if err != nil {
			return err
		}
		if !o.Status.Active() {
			return precondition(CodeOrderNotOpen, "only open or held orders can be split (order is %s)", o.Status)
		}
		shift, err := s.requireOpenShift(ctx, tx, o.ShiftID)
		if err != nil {
			return err
		}

		remaining := 0
		for _, l := range o.ActiveLines() {
			remaining += l.Quantity
		}
		taken := 0
		for _, id := range order {
			l, err := liveLine(o, id)
			if err != nil {
				return err
			}
			if want[id] > l.Quantity {
				return newErr(KindInvalid, CodeSplitQuantity, "%s has %d, cannot split off %d", l.Name, l.Quantity, want[id])
			}
			taken += want[id]
		}
		if taken >= remaining {
			return precondition(CodeSplitTakesEverything, "a split must leave something on the original order")
		}

		n, err := s.newOrder(ctx, tx, actor, shift)
		if err != nil {
			return err
		}
		n.OrderType = o.OrderType
		n.TableID = o.TableID
		n.Customer = o.Customer
		n.SplitFromID = &o.ID

		for _, id := range order {
			l, idx := o.FindLine(id)
			if want[id] == l.Quantity {
				n.AppendLine(o.RemoveLine(idx))
				continue
			}
			part := *l
			part.ID = uuid.New()
			part.Quantity = want[id]
			part.Modifiers = append([]model.LineModifier(nil), l.Modifiers...)
			l.Quantity -= want[id]
			n.AppendLine(part)
		}
		o.UpdatedAt = s.now()
		s.recompute(o)
		s.recompute(n)

		if err := tx.Orders().Save(ctx, o); err != nil {
			return mapRepoErr(err, CodeOrderNotFound)
		}
		if err := tx.Orders().Create(ctx, n); err != nil {
			return err
		}
		orig, split = o, n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordOrder(ctx, actor, "order.split", orig, map[string]any{"new_order_id": split.ID.String()})
	s.recordOrder(ctx, actor, "order.created", split, map[string]any{"split_from": orig.ID.String()})
	return &dto.SplitResponse{Original: *orderToResponse(orig), New: *orderToResponse(split)}, nil
}

// ── Move ──────────────────────────────────────────────────────────────────────

func (s *tableService) Move(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.MoveRequest) (*dto.OrderResponse, error) {
	dest, err := parseID("table_id", req.TableID)
	if err != nil {
		return nil, err
	}
	var from *uuid.UUID
	o, err := s.mutateOrder(ctx, actor, orderID, mutateOpts{}, func(tx repository.Store, o *model.Order) error {
		if !o.Status.Active() {
			return precondition(CodeOrderNotRelocatable, "order #%d is %s and cannot change tables", o.OrderNumber, o.Status)
		}
		if o.TableID != nil && *o.TableID == dest {
			return precondition(CodeSameTable, "order #%d is already on that table", o.OrderNumber)
		}
		if err := tx.LockTable(ctx, dest); err != nil {
			return err
		}
		busy, err := activeOnTable(ctx, tx, o.BranchID, dest)
		if err != nil {
			return err
		}
		if len(busy) > 0 {
			return precondition(CodeTableOccupied, "the destination table has %d active order(s)", len(busy))
		}
		from = o.TableID
		o.TableID = &dest
		o.OrderType = model.OrderDineIn
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	details := map[string]any{"to": dest.String()}
	if from != nil {
		details["from"] = from.String()
	}
	s.recordOrder(ctx, actor, "order.moved", o, details)
	return orderToResponse(o), nil
}

// ── TransferLine ──────────────────────────────────────────────────────────────

func (s *tableService) TransferLine(ctx context.Context, actor Actor, sourceID, lineID uuid.UUID, req dto.TransferLineRequest) (*dto.TransferResponse, error) {
	targetID, err := parseID("target_order_id", req.TargetOrderID)
	if err != nil {
		return nil, err
	}
	if targetID == sourceID {
		return nil, precondition(CodeSameOrder, "source and target are the same order")
	}

	var src, dst *model.Order
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		if src, err = s.loadOrder(ctx, tx.Orders(), actor, sourceID); err != nil {
			return err
		}
		if dst, err = s.loadOrder(ctx, tx.Orders(), actor, targetID); err != nil {
			return err
		}
		for _, o := range []*model.Order{src, dst} {
			if !o.Status.Active() {
				return precondition(CodeOrderNotOpen, "order #%d is %s", o.OrderNumber, o.Status)
			}
		}
		if _, err := liveLine(src, lineID); err != nil {
			return err
		}
		if src.ActiveLineCount() < 2 {
			return precondition(CodeLastLineTransfer, "the last line of an order cannot be transferred; cancel or merge instead")
		}

		_, idx := src.FindLine(lineID)
		dst.AppendLine(src.RemoveLine(idx))
		now := s.now()
		src.UpdatedAt, dst.UpdatedAt = now, now
		s.recompute(src)
		s.recompute(dst)

		if err := tx.Orders().Save(ctx, src); err != nil {
			return mapRepoErr(err, CodeOrderNotFound)
		}
		return mapRepoErr(tx.Orders().Save(ctx, dst), CodeOrderNotFound)
	})
	if err != nil {
		return nil, err
	}
	s.recordOrder(ctx, actor, "order.line_transferred_out", src, map[string]any{"line_id": lineID.String(), "target_id": dst.ID.String()})
	s.recordOrder(ctx, actor, "order.line_transferred_in", dst, map[string]any{"line_id": lineID.String(), "source_id": src.ID.String()})
	return &dto.TransferResponse{Source: *orderToResponse(src), Target: *orderToResponse(dst)}, nil
}

// ── Checkout ──────────────────────────────────────────────────────────────────
// Pays several orders of one table with one split payment:
//   1. Replay if the idempotency key already paid orders on this table
//   2. Select the open orders (all of them, or the ones named)
//   3. Allocate against the combined total and spread it order by order
//   4. Mark every order paid in the same transaction

func (s *tableService) Checkout(ctx context.Context, actor Actor, tableID uuid.UUID, req dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, invalid("idempotency_key is required")
	}
	wanted := make(map[uuid.UUID]bool, len(req.OrderIDs))
	for _, raw := range req.OrderIDs {
		id, err := parseID("order_ids", raw)
		if err != nil {
			return nil, err
		}
		wanted[id] = true
	}

	var (
		paid     []*model.Order
		combined decimal.Decimal
		change   decimal.Decimal
		groupID  uuid.UUID
		replayed bool
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.LockTable(ctx, tableID); err != nil {
			return err
		}

		// 1. Replay
		prior, err := tx.Orders().List(ctx, repository.OrderFilter{
			BranchID: &actor.BranchID,
			TableID:  &tableID,
			Statuses: []model.OrderStatus{model.OrderPaid},
		})
		if err != nil {
			return err
		}
		for i := range prior {
			pays := paymentsByKey(&prior[i], key)
			if len(pays) == 0 {
				continue
			}
			replayed = true
			if pays[0].GroupID != nil {
				groupID = *pays[0].GroupID
			}
			change = change.Add(replayChange(pays))
			combined = combined.Add(prior[i].Total)
			paid = append(paid, &prior[i])
		}
		if replayed {
			return nil
		}

		// 2. Select
		active, err := activeOnTable(ctx, tx, actor.BranchID, tableID)
		if err != nil {
			return err
		}
		var selected []*model.Order
		for i := range active {
			o := &active[i]
			if len(wanted) > 0 {
				if !wanted[o.ID] {
					continue
				}
				delete(wanted, o.ID)
				if o.Status != model.OrderOpen {
					return precondition(CodeOrderNotOpen, "order #%d is %s; resume it before checkout", o.OrderNumber, o.Status)
				}
				if o.ActiveLineCount() == 0 {
					return precondition(CodeOrderEmpty, "order #%d is empty", o.OrderNumber)
				}
			} else if o.Status != model.OrderOpen || o.ActiveLineCount() == 0 {
				continue
			}
			selected = append(selected, o)
		}
		for id := range wanted {
			return newErr(KindNotFound, CodeOrderNotFound, "order %s is not active on this table", id)
		}
		if len(selected) == 0 {
			return precondition(CodeTableHasNoOrders, "no open orders to check out on this table")
		}

		checked := map[uuid.UUID]bool{}
		for _, o := range selected {
			if !checked[o.ShiftID] {
				if _, err := s.requireOpenShift(ctx, tx, o.ShiftID); err != nil {
					return err
				}
				checked[o.ShiftID] = true
			}
			s.recompute(o)
			combined = combined.Add(o.Total)
		}

		// 3. Allocate
		alloc, err := allocatePayments(req.Payments, combined)
		if err != nil {
			return err
		}
		groupID = uuid.New()
		now := s.now()
		byOrder := alloc.distribute(selected, actor, key, groupID, now)

		// 4. Commit
		for _, o := range selected {
			o.Payments = append(o.Payments, byOrder[o.ID]...)
			o.Status = model.OrderPaid
			o.PaidAt = &now
			o.UpdatedAt = now
			if err := tx.Orders().Save(ctx, o); err != nil {
				return mapRepoErr(err, CodeOrderNotFound)
			}
		}
		change = alloc.change
		paid = selected
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.CheckoutResponse{
		GroupID:       groupID.String(),
		Orders:        make([]dto.OrderResponse, 0, len(paid)),
		CombinedTotal: combined,
		Change:        change,
		Replayed:      replayed,
	}
	for _, o := range paid {
		resp.Orders = append(resp.Orders, *orderToResponse(o))
		if !replayed {
			s.recordOrder(ctx, actor, "order.paid", o, map[string]any{"group_id": groupID.String(), "idempotency_key": key})
			if s.receipts != nil {
				if err := s.receipts.EnqueueReceipt(ctx, o.ID); err != nil {
					log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("receipt: enqueue failed")
				}
			}
		}
	}
	return resp, nil
}

// ── TableStatus ───────────────────────────────────────────────────────────────

func (s *tableService) TableStatus(ctx context.Context, actor Actor, filter dto.TableStatusFilter) (*dto.TableStatusResponse, error) {
	ids := make([]uuid.UUID, 0, len(filter.TableIDs))
	for _, raw := range filter.TableIDs {
		id, err := parseID("table_id", raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	orders, err := s.store.Orders().List(ctx, repository.OrderFilter{
		BranchID: &actor.BranchID,
		Statuses: []model.OrderStatus{model.OrderOpen, model.OrderHeld},
	})
	if err != nil {
		return nil, err
	}
	ix := buildTableIndex(orders)
	resp := &dto.TableStatusResponse{Tables: make([]dto.TableStatus, 0, len(ids))}
	for _, id := range ids {
		ts := dto.TableStatus{TableID: id.String(), Status: ix.status(id), OrderIDs: []string{}}
		for _, o := range ix[id] {
			ts.OrderIDs = append(ts.OrderIDs, o.ID.String())
		}
		resp.Tables = append(resp.Tables, ts)
	}
	return resp, nil
}
