// Package memory is an in-process implementation of repository.Store used by
// the service tests. Reads hand out deep copies so callers can never mutate
// stored state without going through Save.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"restopos/internal/model"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type state struct {
	orders   map[uuid.UUID]*model.Order
	shifts   map[uuid.UUID]*model.Shift
	receipts map[uuid.UUID]*model.Receipt
	counters map[uuid.UUID]int
}

func newState() *state {
	return &state{
		orders:   make(map[uuid.UUID]*model.Order),
		shifts:   make(map[uuid.UUID]*model.Shift),
		receipts: make(map[uuid.UUID]*model.Receipt),
		counters: make(map[uuid.UUID]int),
	}
}

func (st *state) clone() *state {
	c := newState()
	for id, o := range st.orders {
		c.orders[id] = o.Clone()
	}
	for id, s := range st.shifts {
		c.shifts[id] = cloneShift(s)
	}
	for id, r := range st.receipts {
		rc := *r
		c.receipts[id] = &rc
	}
	for id, n := range st.counters {
		c.counters[id] = n
	}
	return c
}

func cloneShift(s *model.Shift) *model.Shift {
	c := *s
	c.Movements = append([]model.CashMovement(nil), s.Movements...)
	return &c
}

// Store is safe for concurrent use. Transactions are serialized; a failed
// transaction restores the snapshot taken when it began.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *state

	menu  map[uuid.UUID]model.MenuItem
	audit []model.AuditEntry

	// saveErrs makes the next Save of a given order fail, for atomicity tests.
	saveErrs map[uuid.UUID]error
}

func New() *Store {
	return &Store{
		data:     newState(),
		menu:     make(map[uuid.UUID]model.MenuItem),
		saveErrs: make(map[uuid.UUID]error),
	}
}

func (s *Store) Orders() repository.OrderRepository     { return &orderRepo{s: s} }
func (s *Store) Shifts() repository.ShiftRepository     { return &shiftRepo{s: s} }
func (s *Store) Receipts() repository.ReceiptRepository { return &receiptRepo{s: s} }

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := s.data.clone()
	s.mu.RUnlock()

	if err := fn(&txView{Store: s}); err != nil {
		s.mu.Lock()
		s.data = snap
		s.mu.Unlock()
		return err
	}
	return nil
}

// LockTable is a no-op: transactions are already serialized.
func (s *Store) LockTable(context.Context, uuid.UUID) error { return nil }

// FailNextSave makes the next Save of orderID return err.
func (s *Store) FailNextSave(orderID uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErrs[orderID] = err
}

// txView is the Store handed to a transaction body. Nested transactions
// join the outer one.
type txView struct{ *Store }

func (v *txView) Transaction(_ context.Context, fn func(tx repository.Store) error) error {
	return fn(v)
}

// ── orders ───────────────────────────────────────────────────────────────────

type orderRepo struct{ s *Store }

func (r *orderRepo) Create(_ context.Context, o *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.orders[o.ID]; ok {
		return repository.ErrVersionConflict
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.Version == 0 {
		o.Version = 1
	}
	for i := range o.Lines {
		o.Lines[i].OrderID = o.ID
	}
	r.s.data.orders[o.ID] = o.Clone()
	return nil
}

func (r *orderRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.data.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *orderRepo) Save(_ context.Context, o *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err, ok := r.s.saveErrs[o.ID]; ok {
		delete(r.s.saveErrs, o.ID)
		return err
	}
	cur, ok := r.s.data.orders[o.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != o.Version {
		return repository.ErrVersionConflict
	}
	o.Version++
	o.UpdatedAt = time.Now()
	for i := range o.Lines {
		o.Lines[i].OrderID = o.ID
	}
	r.s.data.orders[o.ID] = o.Clone()
	return nil
}

func (r *orderRepo) List(_ context.Context, f repository.OrderFilter) ([]model.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Order
	for _, o := range r.s.data.orders {
		if !matches(o, f) {
			continue
		}
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderNumber < out[j].OrderNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(o *model.Order, f repository.OrderFilter) bool {
	if f.BranchID != nil && o.BranchID != *f.BranchID {
		return false
	}
	if f.ShiftID != nil && o.ShiftID != *f.ShiftID {
		return false
	}
	if f.TableID != nil && (o.TableID == nil || *o.TableID != *f.TableID) {
		return false
	}
	if f.CreatedBefore != nil && !o.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if o.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *orderRepo) NextOrderNumber(_ context.Context, restaurantID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.counters[restaurantID]++
	return r.s.data.counters[restaurantID], nil
}

// ── shifts ───────────────────────────────────────────────────────────────────

type shiftRepo struct{ s *Store }

func (r *shiftRepo) Create(_ context.Context, sh *model.Shift) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sh.OpenedAt.IsZero() {
		sh.OpenedAt = time.Now()
	}
	if sh.Version == 0 {
		sh.Version = 1
	}
	r.s.data.shifts[sh.ID] = cloneShift(sh)
	return nil
}

func (r *shiftRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Shift, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sh, ok := r.s.data.shifts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneShift(sh), nil
}

// FindLocked ignores mode: transactions are already serialized.
func (r *shiftRepo) FindLocked(ctx context.Context, id uuid.UUID, _ repository.LockMode) (*model.Shift, error) {
	return r.FindByID(ctx, id)
}

func (r *shiftRepo) FindOpenByCashier(_ context.Context, branchID, cashierID uuid.UUID) (*model.Shift, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sh := range r.s.data.shifts {
		if sh.BranchID == branchID && sh.CashierID == cashierID && sh.Status == model.ShiftOpen {
			return cloneShift(sh), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *shiftRepo) ListOpenByBranch(_ context.Context, branchID uuid.UUID) ([]model.Shift, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Shift
	for _, sh := range r.s.data.shifts {
		if sh.BranchID == branchID && sh.Status == model.ShiftOpen {
			out = append(out, *cloneShift(sh))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (r *shiftRepo) Save(_ context.Context, sh *model.Shift) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.data.shifts[sh.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != sh.Version {
		return repository.ErrVersionConflict
	}
	sh.Version++
	next := cloneShift(sh)
	// movements are only ever appended through AddMovement
	next.Movements = cur.Movements
	r.s.data.shifts[sh.ID] = next
	return nil
}

func (r *shiftRepo) AddMovement(_ context.Context, m *model.CashMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sh, ok := r.s.data.shifts[m.ShiftID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	sh.Movements = append(sh.Movements, *m)
	return nil
}

func (r *shiftRepo) ListClosed(_ context.Context, branchID, cashierID uuid.UUID, page, limit int) ([]model.Shift, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []model.Shift
	for _, sh := range r.s.data.shifts {
		if sh.BranchID == branchID && sh.CashierID == cashierID && sh.Status == model.ShiftClosed {
			all = append(all, *cloneShift(sh))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ClosedAt == nil || all[j].ClosedAt == nil {
			return all[i].OpenedAt.After(all[j].OpenedAt)
		}
		return all[i].ClosedAt.After(*all[j].ClosedAt)
	})
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []model.Shift{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *shiftRepo) Totals(_ context.Context, shiftID uuid.UUID) (*repository.ShiftTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := repository.NewShiftTotals()
	for _, o := range r.s.data.orders {
		if o.ShiftID != shiftID {
			continue
		}
		out.OrderCounts[o.Status]++
		if o.Status == model.OrderPaid {
			for _, p := range o.Payments {
				if !p.Reversed {
					out.Payments[p.Method] = out.Payments[p.Method].Add(p.Amount)
				}
			}
		}
		for _, rf := range o.Refunds {
			out.Refunds[rf.Method] = out.Refunds[rf.Method].Add(rf.Amount)
		}
	}
	if sh, ok := r.s.data.shifts[shiftID]; ok {
		sum := decimal.Zero
		for _, m := range sh.Movements {
			sum = sum.Add(m.Amount)
		}
		out.Movements = sum
	}
	return out, nil
}

// ── receipts ─────────────────────────────────────────────────────────────────

type receiptRepo struct{ s *Store }

func (r *receiptRepo) Create(_ context.Context, rc *model.Receipt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	rc.CreatedAt, rc.UpdatedAt = now, now
	c := *rc
	r.s.data.receipts[rc.ID] = &c
	return nil
}

func (r *receiptRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Receipt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rc, ok := r.s.data.receipts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *rc
	return &c, nil
}

func (r *receiptRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]model.Receipt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Receipt
	for _, rc := range r.s.data.receipts {
		if rc.OrderID == orderID {
			out = append(out, *rc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *receiptRepo) Update(_ context.Context, rc *model.Receipt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.receipts[rc.ID]; !ok {
		return repository.ErrNotFound
	}
	rc.UpdatedAt = time.Now()
	c := *rc
	r.s.data.receipts[rc.ID] = &c
	return nil
}

func (r *receiptRepo) ListFailed(_ context.Context, maxRetries, limit int) ([]model.Receipt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Receipt
	for _, rc := range r.s.data.receipts {
		if rc.Status == model.ReceiptError && rc.RetryCount < maxRetries {
			out = append(out, *rc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
