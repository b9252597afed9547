package entity

import (
	"time"

	"github.com/sangkips/tillsync/internal/domain/enum"
)

// Ticket is one sale, from the first item added to finalization. Totals are
// derived from LineItems by Recalculate and are never written anywhere else.
type Ticket struct {
	ClientTicketID string            `json:"client_ticket_id"`
	ShiftID        *string           `json:"shift_id,omitempty"`
	SellerID       *string           `json:"seller_id,omitempty"`
	LineItems      []LineItem        `json:"items"`
	Payments       []Payment         `json:"payments"`
	IsCredit       bool              `json:"is_credit"`
	MemberID       *string           `json:"member_id,omitempty"`
	Subtotal       Money             `json:"subtotal"`
	DiscountTotal  Money             `json:"discount_total"`
	Tax            Money             `json:"tax"`
	Total          Money             `json:"total"`
	Status         enum.TicketStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ClosedAt       *time.Time        `json:"closed_at,omitempty"`
}

// LineItem is one product line on a ticket
type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Discount  Money  `json:"discount"`
	LineTotal Money  `json:"line_total"`
	Note      string `json:"note,omitempty"`
}

// Gross is the line amount before its discount
func (l LineItem) Gross() Money {
	return l.UnitPrice.Times(l.Quantity)
}

// Payment is one tender applied to a ticket
type Payment struct {
	Method    enum.PaymentMethod `json:"method"`
	Amount    Money              `json:"amount"`
	Reference string             `json:"reference,omitempty"`
}

// Recalculate recomputes every line total and the ticket totals in one pass.
// Tax is not modelled yet and is always zero.
func (t *Ticket) Recalculate() {
	var subtotal, discounts Money
	for i := range t.LineItems {
		line := &t.LineItems[i]
		line.LineTotal = line.Gross() - line.Discount
		subtotal += line.LineTotal
		discounts += line.Discount
	}
	t.Subtotal = subtotal
	t.DiscountTotal = discounts
	t.Tax = 0
	t.Total = t.Subtotal + t.Tax
}

// IsEmpty reports whether the ticket has no line items
func (t *Ticket) IsEmpty() bool {
	return len(t.LineItems) == 0
}

// IsOpen reports whether the ticket can still be edited
func (t *Ticket) IsOpen() bool {
	return t.Status == enum.TicketStatusOpen
}

// ItemCount returns the total quantity across all lines
func (t *Ticket) ItemCount() int {
	n := 0
	for _, line := range t.LineItems {
		n += line.Quantity
	}
	return n
}

// PaidTotal sums all payments
func (t *Ticket) PaidTotal() Money {
	var paid Money
	for _, p := range t.Payments {
		paid += p.Amount
	}
	return paid
}

// Balance is what remains to be collected. Negative means change is due.
// It is informational: the ticket ledger does not enforce it.
func (t *Ticket) Balance() Money {
	return t.Total - t.PaidTotal()
}

// FindLine returns the index of the line for productID, or -1
func (t *Ticket) FindLine(productID string) int {
	for i, line := range t.LineItems {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers cannot mutate engine state
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.LineItems = make([]LineItem, len(t.LineItems))
	copy(c.LineItems, t.LineItems)
	c.Payments = make([]Payment, len(t.Payments))
	copy(c.Payments, t.Payments)
	c.ShiftID = cloneString(t.ShiftID)
	c.SellerID = cloneString(t.SellerID)
	c.MemberID = cloneString(t.MemberID)
	if t.ClosedAt != nil {
		closed := *t.ClosedAt
		c.ClosedAt = &closed
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
