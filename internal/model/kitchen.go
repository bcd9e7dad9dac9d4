package model

import (
	"time"

	"github.com/google/uuid"
)

// KitchenTicket is the message published to the kitchen display for the
// unsent lines of a dine-in order.
type KitchenTicket struct {
	OrderID     uuid.UUID     `json:"order_id"`
	OrderNumber int           `json:"order_number"`
	BranchID    uuid.UUID     `json:"branch_id"`
	TableID     *uuid.UUID    `json:"table_id,omitempty"`
	Lines       []KitchenLine `json:"lines"`
	SentAt      time.Time     `json:"sent_at"`
}

type KitchenLine struct {
	LineID    uuid.UUID `json:"line_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Modifiers []string  `json:"modifiers,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// PendingKitchenLines returns the non-voided lines not yet sent.
func (o *Order) PendingKitchenLines() []*OrderLine {
	var out []*OrderLine
	for i := range o.Lines {
		l := &o.Lines[i]
		if !l.Voided && l.KitchenSentAt == nil {
			out = append(out, l)
		}
	}
	return out
}

// NewKitchenTicket builds the ticket for lines at time at.
func NewKitchenTicket(o *Order, lines []*OrderLine, at time.Time) KitchenTicket {
	t := KitchenTicket{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		BranchID:    o.BranchID,
		TableID:     o.TableID,
		SentAt:      at,
	}
	for _, l := range lines {
		kl := KitchenLine{LineID: l.ID, Name: l.Name, Quantity: l.Quantity, Notes: l.Notes}
		for _, m := range l.Modifiers {
			kl.Modifiers = append(kl.Modifiers, m.Name)
		}
		t.Lines = append(t.Lines, kl)
	}
	return t
}
