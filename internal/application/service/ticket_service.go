package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/internal/domain/enum"
	"github.com/sangkips/tillsync/internal/domain/repository"
	"github.com/sangkips/tillsync/pkg/apperror"
	"github.com/sangkips/tillsync/pkg/clock"
	"github.com/sangkips/tillsync/pkg/utils"
)

// Session carries the shift and seller a new ticket is attributed to
type Session struct {
	ShiftID  string
	SellerID string
}

// TicketQueue is where finalized tickets go
type TicketQueue interface {
	Enqueue(ctx context.Context, ticket *entity.Ticket) (*entity.SyncEntry, error)
	IsQueued(ctx context.Context, clientTicketID string) (bool, error)
}

// ErrTicketInProgress is returned by OpenTicket when the open ticket has items
var ErrTicketInProgress = apperror.NewConflictError("An open ticket already has items; set discard to replace it")

// TicketService owns the single active ticket. Every mutation recomputes the
// totals and persists the ticket before it becomes visible.
type TicketService struct {
	active  repository.ActiveTicketRepository
	catalog repository.CatalogRepository
	queue   TicketQueue
	clock   clock.Clock
	logger  *slog.Logger

	mu      sync.Mutex
	current *entity.Ticket
}

// NewTicketService creates a new ticket engine
func NewTicketService(
	active repository.ActiveTicketRepository,
	catalog repository.CatalogRepository,
	queue TicketQueue,
	clk clock.Clock,
	logger *slog.Logger,
) *TicketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketService{
		active:  active,
		catalog: catalog,
		queue:   queue,
		clock:   clk,
		logger:  logger.With("component", "ticket"),
	}
}

// Restore reloads the persisted active ticket after a restart. A ticket that
// already reached the sync queue is dropped from the slot.
func (s *TicketService) Restore(ctx context.Context) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, err := s.active.Load(ctx)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, nil
	}

	queued, err := s.queue.IsQueued(ctx, ticket.ClientTicketID)
	if err != nil {
		return nil, err
	}
	if queued || !ticket.IsOpen() {
		s.logger.Info("dropping finalized ticket from active slot", "client_ticket_id", ticket.ClientTicketID)
		return nil, s.active.Clear(ctx)
	}

	s.current = ticket
	s.logger.Info("restored active ticket",
		"client_ticket_id", ticket.ClientTicketID,
		"lines", len(ticket.LineItems),
	)
	return ticket.Clone(), nil
}

// NewTicket replaces the active ticket with a fresh, empty one, discarding
// whatever was open.
func (s *TicketService) NewTicket(ctx context.Context, session Session) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(ctx, session)
}

// OpenTicket is NewTicket guarded against losing a sale: an open ticket with
// items is only replaced when discard is set. The check and the replacement
// happen under one lock.
func (s *TicketService) OpenTicket(ctx context.Context, session Session, discard bool) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !discard && s.current != nil && !s.current.IsEmpty() {
		return nil, ErrTicketInProgress
	}
	return s.replaceLocked(ctx, session)
}

func (s *TicketService) replaceLocked(ctx context.Context, session Session) (*entity.Ticket, error) {
	now := s.clock.Now()
	ticket := &entity.Ticket{
		ClientTicketID: utils.NewClientTicketID(),
		ShiftID:        optionalString(session.ShiftID),
		SellerID:       optionalString(session.SellerID),
		LineItems:      []entity.LineItem{},
		Payments:       []entity.Payment{},
		Status:         enum.TicketStatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	ticket.Recalculate()

	if err := s.active.Save(ctx, ticket); err != nil {
		return nil, err
	}

	if s.current != nil && !s.current.IsEmpty() {
		s.logger.Warn("discarded open ticket",
			"client_ticket_id", s.current.ClientTicketID,
			"lines", len(s.current.LineItems),
		)
	}
	s.current = ticket
	return ticket.Clone(), nil
}

// Current returns a copy of the active ticket
func (s *TicketService) Current() (*entity.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	return s.current.Clone(), true
}

// AddItem adds qty of product, merging into an existing line for the same
// product.
func (s *TicketService) AddItem(ctx context.Context, product entity.CachedProduct, qty int) (*entity.Ticket, error) {
	if strings.TrimSpace(product.ID) == "" {
		return nil, apperror.ErrInvalidProduct
	}
	if qty < 1 {
		return nil, apperror.NewValidation(apperror.KindInvalidQuantity, "quantity must be at least 1, got %d", qty)
	}

	return s.mutate(ctx, func(t *entity.Ticket) error {
		if i := t.FindLine(product.ID); i >= 0 {
			t.LineItems[i].Quantity += qty
			return nil
		}
		t.LineItems = append(t.LineItems, entity.LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  qty,
		})
		return nil
	})
}

// AddItemByID looks the product up in the catalog cache and adds it
func (s *TicketService) AddItemByID(ctx context.Context, productID string, qty int) (*entity.Ticket, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, apperror.ErrInvalidProduct
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewValidation(apperror.KindInvalidProduct, "product %s is not in the catalog", productID)
	}
	if !product.Active {
		return nil, apperror.NewValidation(apperror.KindInvalidProduct, "product %s is inactive", productID)
	}
	return s.AddItem(ctx, *product, qty)
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it. A
// discount larger than the new gross amount is cut down to it.
func (s *TicketService) UpdateQuantity(ctx context.Context, index, qty int) (*entity.Ticket, error) {
	return s.mutate(ctx, func(t *entity.Ticket) error {
		if err := checkIndex(t, index); err != nil {
			return err
		}
		if qty <= 0 {
			t.LineItems = removeLine(t.LineItems, index)
			return nil
		}
		line := &t.LineItems[index]
		line.Quantity = qty
		line.Discount = min(line.Discount, line.Gross())
		return nil
	})
}

// ApplyDiscount sets the absolute discount of a line. It may not exceed the
// line's gross amount.
func (s *TicketService) ApplyDiscount(ctx context.Context, index int, amount entity.Money) (*entity.Ticket, error) {
	if amount < 0 {
		return nil, apperror.NewValidation(apperror.KindInvalidAmount, "discount cannot be negative")
	}
	return s.mutate(ctx, func(t *entity.Ticket) error {
		if err := checkIndex(t, index); err != nil {
			return err
		}
		if gross := t.LineItems[index].Gross(); amount > gross {
			return apperror.NewValidation(apperror.KindInvalidAmount, "discount %s exceeds line amount %s", amount, gross)
		}
		t.LineItems[index].Discount = amount
		return nil
	})
}

// SetNote attaches a free-text note to a line
func (s *TicketService) SetNote(ctx context.Context, index int, note string) (*entity.Ticket, error) {
	return s.mutate(ctx, func(t *entity.Ticket) error {
		if err := checkIndex(t, index); err != nil {
			return err
		}
		t.LineItems[index].Note = strings.TrimSpace(note)
		return nil
	})
}

// RemoveItem deletes a line
func (s *TicketService) RemoveItem(ctx context.Context, index int) (*entity.Ticket, error) {
	return s.mutate(ctx, func(t *entity.Ticket) error {
		if err := checkIndex(t, index); err != nil {
			return err
		}
		t.LineItems = removeLine(t.LineItems, index)
		return nil
	})
}

// AddPayment records a tender. Non-cash methods need a reference. Over- and
// underpayment are not checked here; see Ticket.Balance.
func (s *TicketService) AddPayment(ctx context.Context, method enum.PaymentMethod, amount entity.Money, reference string) (*entity.Ticket, error) {
	method = enum.NormalizePaymentMethod(method.String())
	reference = strings.TrimSpace(reference)

	if method == "" {
		return nil, apperror.NewValidation(apperror.KindInvalidMethod, "payment method is required")
	}
	if amount <= 0 {
		return nil, apperror.NewValidation(apperror.KindInvalidAmount, "payment amount must be positive")
	}
	if method.RequiresReference() && reference == "" {
		return nil, apperror.ErrMissingReference
	}

	return s.mutate(ctx, func(t *entity.Ticket) error {
		t.Payments = append(t.Payments, entity.Payment{
			Method:    method,
			Amount:    amount,
			Reference: reference,
		})
		return nil
	})
}

// SetCredit marks the ticket as a credit sale for a member
func (s *TicketService) SetCredit(ctx context.Context, memberID string) (*entity.Ticket, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, apperror.NewValidation(apperror.KindInvalidCredit, "credit sale needs a member")
	}
	return s.mutate(ctx, func(t *entity.Ticket) error {
		t.IsCredit = true
		t.MemberID = &memberID
		return nil
	})
}

// ClearCredit turns a credit sale back into a regular one
func (s *TicketService) ClearCredit(ctx context.Context) (*entity.Ticket, error) {
	return s.mutate(ctx, func(t *entity.Ticket) error {
		t.IsCredit = false
		t.MemberID = nil
		return nil
	})
}

// Finalize closes the ticket and hands it to the sync queue. If queueing
// fails the ticket stays open and active so the sale is not lost.
func (s *TicketService) Finalize(ctx context.Context) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, apperror.ErrNoActiveTicket
	}
	if s.current.IsEmpty() {
		return nil, apperror.ErrEmptyTicket
	}

	closed := s.current.Clone()
	now := s.clock.Now()
	closed.Recalculate()
	closed.Status = enum.TicketStatusClosed
	closed.ClosedAt = &now
	closed.UpdatedAt = now

	if _, err := s.queue.Enqueue(ctx, closed); err != nil {
		s.logger.Error("failed to queue ticket, keeping it open",
			"client_ticket_id", closed.ClientTicketID,
			"error", err,
		)
		return nil, err
	}

	s.current = nil
	if err := s.active.Clear(ctx); err != nil {
		// the ticket is queued; Restore drops a stale slot on the next start
		s.logger.Warn("failed to clear active ticket slot", "error", err)
	}

	s.logger.Info("ticket finalized",
		"client_ticket_id", closed.ClientTicketID,
		"total", closed.Total.String(),
		"lines", len(closed.LineItems),
	)
	return closed.Clone(), nil
}

// mutate applies fn to a copy of the active ticket, recomputes totals and
// persists the result before swapping it in.
func (s *TicketService) mutate(ctx context.Context, fn func(t *entity.Ticket) error) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, apperror.ErrNoActiveTicket
	}

	next := s.current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Recalculate()
	next.UpdatedAt = s.clock.Now()

	if err := s.active.Save(ctx, next); err != nil {
		return nil, err
	}
	s.current = next
	return next.Clone(), nil
}

func checkIndex(t *entity.Ticket, index int) error {
	if index < 0 || index >= len(t.LineItems) {
		return apperror.NewValidation(apperror.KindInvalidIndex, "line index %d out of range (ticket has %d lines)", index, len(t.LineItems))
	}
	return nil
}

func removeLine(lines []entity.LineItem, index int) []entity.LineItem {
	out := make([]entity.LineItem, 0, len(lines)-1)
	out = append(out, lines[:index]...)
	return append(out, lines[index+1:]...)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
