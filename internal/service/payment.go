package service

import (
	"time"

	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// portion is one applied slice of a payment request.
type portion struct {
	method   model.PaymentMethod
	amount   decimal.Decimal
	tendered decimal.Decimal
}

// allocation is the outcome of matching a split payment against a total.
// Non-cash splits are applied as given; all cash splits collapse into one
// portion covering the remainder, and whatever is left is change.
type allocation struct {
	portions []portion
	change   decimal.Decimal
}

func allocatePayments(splits []dto.PaymentSplit, total decimal.Decimal) (*allocation, error) {
	if len(splits) == 0 {
		return nil, invalid("at least one payment is required")
	}
	nonCash := decimal.Zero
	cash := decimal.Zero
	var out allocation
	for _, sp := range splits {
		m := model.PaymentMethod(sp.Method)
		amt := money.Round(sp.Amount)
		if !amt.IsPositive() {
			return nil, invalid("payment amounts must be positive")
		}
		switch m {
		case model.PaymentCash:
			cash = cash.Add(amt)
		case model.PaymentCard, model.PaymentTransfer, model.PaymentWallet:
			nonCash = nonCash.Add(amt)
			out.portions = append(out.portions, portion{method: m, amount: amt, tendered: amt})
		default:
			return nil, invalid("unknown payment method %q", sp.Method)
		}
	}

	if nonCash.GreaterThan(total) {
		return nil, recoverable(CodeNonCashExceedsTotal,
			"non-cash payments %s exceed the total %s", nonCash.StringFixed(money.Precision), total.StringFixed(money.Precision))
	}
	if nonCash.Add(cash).LessThan(total) {
		return nil, recoverable(CodePaymentInsufficient,
			"payments %s do not cover the total %s", nonCash.Add(cash).StringFixed(money.Precision), total.StringFixed(money.Precision))
	}

	applied := total.Sub(nonCash)
	if cash.IsPositive() {
		if applied.IsPositive() {
			out.portions = append(out.portions, portion{method: model.PaymentCash, amount: applied, tendered: cash})
		}
		out.change = cash.Sub(applied)
	}
	return &out, nil
}

// toPayments turns a single-order allocation into payment rows.
func (a *allocation) toPayments(o *model.Order, actor Actor, key string, group *uuid.UUID, at time.Time) []model.Payment {
	pays := make([]model.Payment, 0, len(a.portions))
	for _, p := range a.portions {
		pays = append(pays, model.Payment{
			ID:             uuid.New(),
			OrderID:        o.ID,
			ShiftID:        o.ShiftID,
			Method:         p.method,
			Amount:         p.amount,
			Tendered:       p.tendered,
			GroupID:        group,
			IdempotencyKey: key,
			CreatedBy:      actor.CashierID,
			CreatedAt:      at,
		})
	}
	return pays
}

// distribute spreads the allocation over several orders in sequence, each
// order drawing from the portions until its total is covered. The change is
// booked as extra tendered on the last cash slice.
func (a *allocation) distribute(orders []*model.Order, actor Actor, key string, group uuid.UUID, at time.Time) map[uuid.UUID][]model.Payment {
	out := make(map[uuid.UUID][]model.Payment, len(orders))
	queue := make([]portion, len(a.portions))
	copy(queue, a.portions)

	var (
		haveCash      bool
		lastCashOrder uuid.UUID
		lastCashIdx   int
	)
	for _, o := range orders {
		due := o.Total
		for due.IsPositive() && len(queue) > 0 {
			head := &queue[0]
			take := decimal.Min(due, head.amount)
			g := group
			out[o.ID] = append(out[o.ID], model.Payment{
				ID:             uuid.New(),
				OrderID:        o.ID,
				ShiftID:        o.ShiftID,
				Method:         head.method,
				Amount:         take,
				Tendered:       take,
				GroupID:        &g,
				IdempotencyKey: key,
				CreatedBy:      actor.CashierID,
				CreatedAt:      at,
			})
			if head.method == model.PaymentCash {
				lastCashOrder = o.ID
				lastCashIdx = len(out[o.ID]) - 1
				haveCash = true
			}
			due = due.Sub(take)
			head.amount = head.amount.Sub(take)
			if !head.amount.IsPositive() {
				queue = queue[1:]
			}
		}
	}
	if haveCash && a.change.IsPositive() {
		p := &out[lastCashOrder][lastCashIdx]
		p.Tendered = p.Tendered.Add(a.change)
	}
	return out
}

// replayChange recovers the change handed out for an earlier payment call.
func replayChange(pays []model.Payment) decimal.Decimal {
	change := decimal.Zero
	for _, p := range pays {
		change = change.Add(p.Tendered.Sub(p.Amount))
	}
	return change
}

// paymentsByKey returns the live payments of o recorded under key.
func paymentsByKey(o *model.Order, key string) []model.Payment {
	var out []model.Payment
	for _, p := range o.Payments {
		if !p.Reversed && p.IdempotencyKey == key {
			out = append(out, p)
		}
	}
	return out
}
