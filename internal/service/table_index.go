package service

import (
	"restopos/internal/model"

	"github.com/google/uuid"
)

// Table statuses are derived from the orders that reference a table; the
// engine never stores them.
const (
	TableFree   = "free"
	TableActive = "active"
	TableHeld   = "held"
)

// tableIndex maps a table to its active (open or held) orders. It is rebuilt
// from a fresh order query whenever it is needed.
type tableIndex map[uuid.UUID][]*model.Order

func buildTableIndex(orders []model.Order) tableIndex {
	ix := make(tableIndex)
	for i := range orders {
		o := &orders[i]
		if o.TableID == nil || !o.Status.Active() {
			continue
		}
		ix[*o.TableID] = append(ix[*o.TableID], o)
	}
	return ix
}

// status is active when any order on the table is open, held when every
// order on it is held, and free otherwise.
func (ix tableIndex) status(tableID uuid.UUID) string {
	orders := ix[tableID]
	if len(orders) == 0 {
		return TableFree
	}
	for _, o := range orders {
		if o.Status == model.OrderOpen {
			return TableActive
		}
	}
	return TableHeld
}
