package request

import "github.com/sangkips/tillsync/internal/domain/entity"

// NewTicketRequest opens a ticket. Discard must be set to replace an open
// ticket that already has items.
type NewTicketRequest struct {
	ShiftID  string `json:"shift_id" binding:"omitempty,max=64"`
	SellerID string `json:"seller_id" binding:"omitempty,max=64"`
	Discard  bool   `json:"discard"`
}

// AddItemRequest adds a cached product to the current ticket
type AddItemRequest struct {
	ProductID string `json:"product_id" binding:"required,max=64"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// UpdateQuantityRequest sets a line quantity; zero removes the line
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0"`
}

// DiscountRequest sets a line discount
type DiscountRequest struct {
	Amount entity.Money `json:"amount"`
}

// NoteRequest sets a line note
type NoteRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// PaymentRequest adds a tender to the current ticket
type PaymentRequest struct {
	Method    string       `json:"method" binding:"required"`
	Amount    entity.Money `json:"amount"`
	Reference string       `json:"reference" binding:"max=128"`
}

// CreditRequest marks the current ticket as a credit sale
type CreditRequest struct {
	MemberID string `json:"member_id" binding:"required,max=64"`
}
