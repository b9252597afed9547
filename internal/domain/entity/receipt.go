package entity

import (
	"time"

	"github.com/sangkips/tillsync/internal/domain/enum"
)

// ReceiptHeader holds the store details printed at the top of a receipt.
type ReceiptHeader struct {
	StoreName string `json:"store_name"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Receipt is a printable view of a closed ticket. It is composed at print
// time and never stored.
type Receipt struct {
	Header         ReceiptHeader   `json:"header"`
	ClientTicketID string          `json:"client_ticket_id"`
	ServerID       *string         `json:"server_id,omitempty"`
	SyncStatus     enum.SyncStatus `json:"sync_status"`
	Date           time.Time       `json:"date"`
	SellerID       *string         `json:"seller_id,omitempty"`
	MemberID       *string         `json:"member_id,omitempty"`
	IsCredit       bool            `json:"is_credit"`
	Items          []LineItem      `json:"items"`
	Payments       []Payment       `json:"payments"`
	Subtotal       Money           `json:"subtotal"`
	DiscountTotal  Money           `json:"discount_total"`
	Tax            Money           `json:"tax"`
	Total          Money           `json:"total"`
	Paid           Money           `json:"paid"`
	Change         Money           `json:"change"`
	Due            Money           `json:"due"`
}

// NewReceipt builds a receipt for a closed ticket and its sync record
func NewReceipt(header ReceiptHeader, ticket *Ticket, record *OfflineTicket) *Receipt {
	r := &Receipt{
		Header:         header,
		ClientTicketID: ticket.ClientTicketID,
		ServerID:       record.ServerID,
		SyncStatus:     record.Status,
		Date:           ticket.CreatedAt,
		SellerID:       ticket.SellerID,
		MemberID:       ticket.MemberID,
		IsCredit:       ticket.IsCredit,
		Items:          ticket.LineItems,
		Payments:       ticket.Payments,
		Subtotal:       ticket.Subtotal,
		DiscountTotal:  ticket.DiscountTotal,
		Tax:            ticket.Tax,
		Total:          ticket.Total,
		Paid:           ticket.PaidTotal(),
	}
	if ticket.ClosedAt != nil {
		r.Date = *ticket.ClosedAt
	}

	switch balance := ticket.Balance(); {
	case balance < 0:
		r.Change = -balance
	case balance > 0:
		r.Due = balance
	}
	return r
}
