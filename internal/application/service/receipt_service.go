package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/internal/domain/enum"
	"github.com/sangkips/tillsync/internal/domain/repository"
	"github.com/sangkips/tillsync/pkg/apperror"
	"github.com/sangkips/tillsync/pkg/printer"
)

// ReceiptConfig describes the receipt printer and the store header
type ReceiptConfig struct {
	PrinterType string
	Width       int
	Header      entity.ReceiptHeader
}

// PrinterStatus reports the configured printer
type PrinterStatus struct {
	Configured bool   `json:"configured"`
	Ready      bool   `json:"ready"`
	Type       string `json:"type"`
}

// ReceiptService formats closed tickets and prints them. It reads the
// durable ticket record, so a receipt can be reprinted while offline and
// after the ticket has synced.
type ReceiptService struct {
	printer printer.Printer
	tickets repository.TicketRepository
	cfg     ReceiptConfig
	logger  *slog.Logger
}

// NewReceiptService creates a new receipt service
func NewReceiptService(p printer.Printer, tickets repository.TicketRepository, cfg ReceiptConfig, logger *slog.Logger) *ReceiptService {
	if cfg.Width <= 0 {
		cfg.Width = printer.Width58mm
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptService{
		printer: p,
		tickets: tickets,
		cfg:     cfg,
		logger:  logger.With("component", "receipt"),
	}
}

// Status reports whether a printer is configured and reachable
func (s *ReceiptService) Status(ctx context.Context) *PrinterStatus {
	return &PrinterStatus{
		Configured: s.cfg.PrinterType != printer.TypeNone && s.cfg.PrinterType != "",
		Ready:      s.printer.Ready(ctx),
		Type:       s.cfg.PrinterType,
	}
}

// Receipt builds the receipt for a closed ticket without printing it
func (s *ReceiptService) Receipt(ctx context.Context, clientTicketID string) (*entity.Receipt, error) {
	record, err := s.tickets.GetOfflineTicket(ctx, clientTicketID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperror.NewNotFoundError("Ticket")
	}

	ticket, err := record.Ticket()
	if err != nil {
		return nil, apperror.NewStorageError("decode offline ticket", err)
	}
	return entity.NewReceipt(s.cfg.Header, ticket, record), nil
}

// PrintTicket prints the receipt for a closed ticket. The receipt is
// returned even when the printer fails, so the caller can show it.
func (s *ReceiptService) PrintTicket(ctx context.Context, clientTicketID string) (*entity.Receipt, error) {
	receipt, err := s.Receipt(ctx, clientTicketID)
	if err != nil {
		return nil, err
	}

	if err := s.printer.Print(ctx, FormatReceipt(receipt, s.cfg.Width)); err != nil {
		s.logger.Warn("receipt print failed", "client_ticket_id", clientTicketID, "error", err)
		return receipt, apperror.NewAppError(http.StatusServiceUnavailable, fmt.Sprintf("printer unavailable: %v", err))
	}
	return receipt, nil
}

// FormatReceipt converts a receipt into ESC/POS bytes
func FormatReceipt(r *entity.Receipt, width int) []byte {
	doc := printer.NewDocument(width)

	doc.SetAlign(printer.AlignCenter).
		SetBold(true).
		SetSize(printer.SizeDouble).
		Text(r.Header.StoreName).
		SetSize(printer.SizeNormal).
		SetBold(false)
	if r.Header.Address != "" {
		doc.Text(r.Header.Address)
	}
	if r.Header.Phone != "" {
		doc.Text(r.Header.Phone)
	}

	doc.SetAlign(printer.AlignLeft).Rule('-')
	doc.Columns("Ticket:", shortID(r.ClientTicketID)).
		Columns("Date:", r.Date.Format("2006-01-02 15:04"))
	if r.SellerID != nil {
		doc.Columns("Seller:", *r.SellerID)
	}
	if r.IsCredit && r.MemberID != nil {
		doc.Columns("Credit to:", *r.MemberID)
	}
	doc.Rule('-')

	for _, item := range r.Items {
		doc.Columns(fmt.Sprintf("%dx %s", item.Quantity, item.Name), item.LineTotal.String())
		if item.Quantity > 1 {
			doc.Text("  @ " + item.UnitPrice.String() + " each")
		}
		if item.Discount > 0 {
			doc.Text("  discount -" + item.Discount.String())
		}
		if item.Note != "" {
			doc.Text("  " + item.Note)
		}
	}
	doc.Rule('-')

	if r.DiscountTotal > 0 {
		doc.Columns("Discounts:", "-"+r.DiscountTotal.String())
	}
	doc.Columns("Subtotal:", r.Subtotal.String())
	if r.Tax > 0 {
		doc.Columns("Tax:", r.Tax.String())
	}
	doc.SetBold(true).
		Columns("TOTAL:", r.Total.String()).
		SetBold(false)

	for _, p := range r.Payments {
		label := p.Method.String()
		if p.Reference != "" {
			label += " " + p.Reference
		}
		doc.Columns(label, p.Amount.String())
	}
	if r.Change > 0 {
		doc.Columns("Change:", r.Change.String())
	}
	if r.Due > 0 {
		doc.Columns("Due:", r.Due.String())
	}
	doc.Rule('-')

	doc.SetAlign(printer.AlignCenter)
	if r.SyncStatus != enum.SyncStatusSynced {
		doc.Text("Recorded offline")
	}
	doc.Feed(1).
		Text("Thank you!").
		SetAlign(printer.AlignLeft).
		Cut()

	return doc.Bytes()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
