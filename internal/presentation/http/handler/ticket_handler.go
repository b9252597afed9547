package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/tillsync/internal/application/service"
	"github.com/sangkips/tillsync/internal/domain/enum"
	"github.com/sangkips/tillsync/internal/presentation/http/dto/request"
	"github.com/sangkips/tillsync/internal/presentation/http/dto/response"
)

// TicketHandler handles requests against the ticket being built
type TicketHandler struct {
	ticketService *service.TicketService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(ticketService *service.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// Current returns the active ticket
func (h *TicketHandler) Current(c *gin.Context) {
	ticket, ok := h.ticketService.Current()
	if !ok {
		response.NotFound(c, "No active ticket")
		return
	}
	response.OK(c, "Ticket retrieved successfully", ticket)
}

// Create opens a new ticket. An open ticket with items is only replaced when
// the request sets discard.
func (h *TicketHandler) Create(c *gin.Context) {
	var req request.NewTicketRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	ticket, err := h.ticketService.OpenTicket(c.Request.Context(), service.Session{
		ShiftID:  req.ShiftID,
		SellerID: req.SellerID,
	}, req.Discard)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Ticket created successfully", ticket)
}

// AddItem adds a cached product to the active ticket
func (h *TicketHandler) AddItem(c *gin.Context) {
	var req request.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	ticket, err := h.ticketService.AddItemByID(c.Request.Context(), req.ProductID, req.Quantity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Item added successfully", ticket)
}

// UpdateQuantity sets the quantity of a line
func (h *TicketHandler) UpdateQuantity(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req request.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	ticket, err := h.ticketService.UpdateQuantity(c.Request.Context(), index, *req.Quantity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Quantity updated successfully", ticket)
}

// ApplyDiscount sets the discount of a line
func (h *TicketHandler) ApplyDiscount(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req request.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	ticket, err := h.ticketService.ApplyDiscount(c.Request.Context(), index, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Discount applied successfully", ticket)
}

// SetNote sets the note of a line
func (h *TicketHandler) SetNote(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req request.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	ticket, err := h.ticketService.SetNote(c.Request.Context(), index, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Note updated successfully", ticket)
}

// RemoveItem removes a line
func (h *TicketHandler) RemoveItem(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}

	ticket, err := h.ticketService.RemoveItem(c.Request.Context(), index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Item removed successfully", ticket)
}

// AddPayment adds a tender to the active ticket
func (h *TicketHandler) AddPayment(c *gin.Context) {
	var req request.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	ticket, err := h.ticketService.AddPayment(
		c.Request.Context(),
		enum.NormalizePaymentMethod(req.Method),
		req.Amount,
		req.Reference,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Payment added successfully", ticket)
}

// SetCredit marks the active ticket as a credit sale
func (h *TicketHandler) SetCredit(c *gin.Context) {
	var req request.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	ticket, err := h.ticketService.SetCredit(c.Request.Context(), req.MemberID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Credit sale set successfully", ticket)
}

// ClearCredit reverts the active ticket to a regular sale
func (h *TicketHandler) ClearCredit(c *gin.Context) {
	ticket, err := h.ticketService.ClearCredit(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Credit sale cleared successfully", ticket)
}

// Finalize closes the active ticket and queues it for sync
func (h *TicketHandler) Finalize(c *gin.Context) {
	ticket, err := h.ticketService.Finalize(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Ticket finalized successfully", ticket)
}
