package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/tillsync/internal/application/service"
	"github.com/sangkips/tillsync/internal/presentation/http/dto/response"
)

// ReceiptHandler renders and prints receipts for closed tickets
type ReceiptHandler struct {
	receiptService *service.ReceiptService
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(receiptService *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService}
}

// Get returns the receipt of a closed ticket
func (h *ReceiptHandler) Get(c *gin.Context) {
	receipt, err := h.receiptService.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Receipt retrieved successfully", receipt)
}

// Print sends the receipt of a closed ticket to the printer
func (h *ReceiptHandler) Print(c *gin.Context) {
	receipt, err := h.receiptService.PrintTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Receipt printed successfully", receipt)
}

// PrinterStatus reports the configured printer
func (h *ReceiptHandler) PrinterStatus(c *gin.Context) {
	response.OK(c, "Printer status retrieved successfully", h.receiptService.Status(c.Request.Context()))
}
