package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/internal/domain/enum"
	"github.com/sangkips/tillsync/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertTotalsConsistent(t *testing.T, ticket *entity.Ticket) {
	t.Helper()
	var subtotal, discounts entity.Money
	for _, line := range ticket.LineItems {
		assert.Equal(t, line.UnitPrice.Times(line.Quantity)-line.Discount, line.LineTotal)
		subtotal += line.LineTotal
		discounts += line.Discount
	}
	assert.Equal(t, subtotal, ticket.Subtotal)
	assert.Equal(t, discounts, ticket.DiscountTotal)
	assert.Equal(t, ticket.Subtotal+ticket.Tax, ticket.Total)
}

func TestTotalsHoldAfterEveryMutation(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	ctx := h.ctx

	_, err := h.engine.NewTicket(ctx, Session{})
	require.NoError(t, err)

	steps := []func() (*entity.Ticket, error){
		func() (*entity.Ticket, error) { return h.engine.AddItemByID(ctx, "tea", 2) },
		func() (*entity.Ticket, error) { return h.engine.AddItemByID(ctx, "cake", 1) },
		func() (*entity.Ticket, error) { return h.engine.ApplyDiscount(ctx, 0, 75) },
		func() (*entity.Ticket, error) { return h.engine.UpdateQuantity(ctx, 1, 3) },
		func() (*entity.Ticket, error) { return h.engine.SetNote(ctx, 1, "no sugar") },
		func() (*entity.Ticket, error) { return h.engine.AddItemByID(ctx, "tea", 1) },
		func() (*entity.Ticket, error) { return h.engine.RemoveItem(ctx, 1) },
		func() (*entity.Ticket, error) { return h.engine.UpdateQuantity(ctx, 0, 0) },
	}

	for i, step := range steps {
		ticket, err := step()
		require.NoError(t, err, "step %d", i)
		assertTotalsConsistent(t, ticket)
	}

	current, ok := h.engine.Current()
	require.True(t, ok)
	assert.True(t, current.IsEmpty())
	assert.Equal(t, entity.Money(0), current.Total)
}

func TestAddItemMergesSameProduct(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	_, err := h.engine.NewTicket(h.ctx, Session{})
	require.NoError(t, err)

	_, err = h.engine.AddItemByID(h.ctx, "tea", 2)
	require.NoError(t, err)
	ticket, err := h.engine.AddItemByID(h.ctx, "tea", 3)
	require.NoError(t, err)

	require.Len(t, ticket.LineItems, 1)
	assert.Equal(t, 5, ticket.LineItems[0].Quantity)
	assert.Equal(t, entity.Money(1250), ticket.Total)
}

func TestAddItemValidation(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	_, err := h.engine.NewTicket(h.ctx, Session{})
	require.NoError(t, err)

	_, err = h.engine.AddItem(h.ctx, entity.CachedProduct{Name: "Mystery", Price: 100}, 1)
	assert.ErrorIs(t, err, apperror.ErrInvalidProduct)

	_, err = h.engine.AddItemByID(h.ctx, "tea", 0)
	assert.True(t, apperror.IsValidation(err))

	_, err = h.engine.AddItemByID(h.ctx, "unknown", 1)
	assert.ErrorIs(t, err, apperror.ErrInvalidProduct)

	_, err = h.engine.AddItemByID(h.ctx, "old", 1)
	assert.ErrorIs(t, err, apperror.ErrInvalidProduct)

	_, err = h.engine.UpdateQuantity(h.ctx, 4, 1)
	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, apperror.KindInvalidIndex, verr.Kind)
}

func TestMutationsWithoutActiveTicket(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})

	_, err := h.engine.AddItemByID(h.ctx, "tea", 1)
	assert.ErrorIs(t, err, apperror.ErrNoActiveTicket)

	_, err = h.engine.Finalize(h.ctx)
	assert.ErrorIs(t, err, apperror.ErrNoActiveTicket)

	_, ok := h.engine.Current()
	assert.False(t, ok)
}

func TestFinalizeEmptyTicketStaysOpen(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	created, err := h.engine.NewTicket(h.ctx, Session{})
	require.NoError(t, err)

	_, err = h.engine.Finalize(h.ctx)
	assert.ErrorIs(t, err, apperror.ErrEmptyTicket)

	current, ok := h.engine.Current()
	require.True(t, ok)
	assert.Equal(t, created.ClientTicketID, current.ClientTicketID)
	assert.Equal(t, enum.TicketStatusOpen, current.Status)

	entry, err := h.tickets.GetEntry(h.ctx, created.ClientTicketID)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestNonCashPaymentRequiresReference(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	_, err := h.engine.NewTicket(h.ctx, Session{})
	require.NoError(t, err)
	_, err = h.engine.AddItemByID(h.ctx, "cake", 1)
	require.NoError(t, err)

	_, err = h.engine.AddPayment(h.ctx, enum.PaymentMethodCard, 400, "  ")
	assert.ErrorIs(t, err, apperror.ErrMissingReference)

	_, err = h.engine.AddPayment(h.ctx, enum.PaymentMethodCash, 100, "")
	require.NoError(t, err)
	ticket, err := h.engine.AddPayment(h.ctx, enum.PaymentMethodCard, 500, "AUTH-991")
	require.NoError(t, err)

	require.Len(t, ticket.Payments, 2)
	assert.Equal(t, entity.Money(600), ticket.PaidTotal())
	assert.Equal(t, entity.Money(-200), ticket.Balance())

	_, err = h.engine.AddPayment(h.ctx, enum.PaymentMethodCash, 0, "")
	assert.True(t, apperror.IsValidation(err))
}

func TestCreditSale(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	_, err := h.engine.NewTicket(h.ctx, Session{})
	require.NoError(t, err)

	_, err = h.engine.SetCredit(h.ctx, "")
	assert.True(t, apperror.IsValidation(err))

	ticket, err := h.engine.SetCredit(h.ctx, "member-9")
	require.NoError(t, err)
	assert.True(t, ticket.IsCredit)
	assert.Equal(t, "member-9", *ticket.MemberID)

	ticket, err = h.engine.ClearCredit(h.ctx)
	require.NoError(t, err)
	assert.False(t, ticket.IsCredit)
	assert.Nil(t, ticket.MemberID)
}

func TestFinalizeQueuesTicketAndClearsSlot(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	_, err := h.engine.NewTicket(h.ctx, Session{ShiftID: "shift-7", SellerID: "s-1"})
	require.NoError(t, err)
	_, err = h.engine.AddItemByID(h.ctx, "tea", 4)
	require.NoError(t, err)

	closed, err := h.engine.Finalize(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, enum.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	_, ok := h.engine.Current()
	assert.False(t, ok)
	slot, err := h.active.Load(h.ctx)
	require.NoError(t, err)
	assert.Nil(t, slot)

	entry := h.entry(t, closed.ClientTicketID)
	assert.Equal(t, enum.SyncStatusPending, entry.Status)
	queued, err := entry.Ticket()
	require.NoError(t, err)
	assert.Equal(t, entity.Money(1000), queued.Total)
	assert.Equal(t, "shift-7", *queued.ShiftID)
	assert.Equal(t, enum.TicketStatusClosed, queued.Status)

	// offline: nothing was sent
	assert.Equal(t, 0, h.server.batchCount())
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, *entity.Ticket) (*entity.SyncEntry, error) {
	return nil, apperror.NewStorageError("save offline ticket", errors.New("disk full"))
}

func (failingQueue) IsQueued(context.Context, string) (bool, error) {
	return false, nil
}

func TestFinalizeKeepsTicketOpenWhenQueueFails(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	engine := NewTicketService(h.active, h.catalog, failingQueue{}, h.clock, nil)

	_, err := engine.NewTicket(h.ctx, Session{})
	require.NoError(t, err)
	_, err = engine.AddItemByID(h.ctx, "tea", 1)
	require.NoError(t, err)

	_, err = engine.Finalize(h.ctx)
	assert.True(t, apperror.IsStorage(err))

	current, ok := engine.Current()
	require.True(t, ok)
	assert.Equal(t, enum.TicketStatusOpen, current.Status)
	assert.Nil(t, current.ClosedAt)
	assert.Len(t, current.LineItems, 1)
}

func TestRestoreReloadsActiveTicket(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	created, err := h.engine.NewTicket(h.ctx, Session{})
	require.NoError(t, err)
	_, err = h.engine.AddItemByID(h.ctx, "cake", 2)
	require.NoError(t, err)

	restarted := NewTicketService(h.active, h.catalog, h.syncer, h.clock, nil)
	restored, err := restarted.Restore(h.ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, created.ClientTicketID, restored.ClientTicketID)
	assert.Equal(t, entity.Money(800), restored.Total)

	ticket, err := restarted.AddItemByID(h.ctx, "cake", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, ticket.LineItems[0].Quantity)
}

func TestRestoreDropsAlreadyQueuedTicket(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	_, err := h.engine.NewTicket(h.ctx, Session{})
	require.NoError(t, err)
	open, err := h.engine.AddItemByID(h.ctx, "tea", 1)
	require.NoError(t, err)

	// simulate a crash after queueing but before the slot was cleared
	closed := open.Clone()
	closed.Status = enum.TicketStatusClosed
	_, err = h.syncer.Enqueue(h.ctx, closed)
	require.NoError(t, err)

	restarted := NewTicketService(h.active, h.catalog, h.syncer, h.clock, nil)
	restored, err := restarted.Restore(h.ctx)
	require.NoError(t, err)
	assert.Nil(t, restored)

	slot, err := h.active.Load(h.ctx)
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestNewTicketDiscardsPrevious(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	first, err := h.engine.NewTicket(h.ctx, Session{})
	require.NoError(t, err)
	_, err = h.engine.AddItemByID(h.ctx, "tea", 1)
	require.NoError(t, err)

	second, err := h.engine.NewTicket(h.ctx, Session{SellerID: "s-2"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ClientTicketID, second.ClientTicketID)
	assert.True(t, second.IsEmpty())
	assert.Equal(t, "s-2", *second.SellerID)
	assert.Nil(t, second.ShiftID)
}

func TestDiscountCannotExceedLineAmount(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	_, err := h.engine.NewTicket(h.ctx, Session{})
	require.NoError(t, err)
	_, err = h.engine.AddItemByID(h.ctx, "cake", 2)
	require.NoError(t, err)

	_, err = h.engine.ApplyDiscount(h.ctx, 0, 801)
	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, apperror.KindInvalidAmount, verr.Kind)

	ticket, err := h.engine.ApplyDiscount(h.ctx, 0, 800)
	require.NoError(t, err)
	assert.Equal(t, entity.Money(0), ticket.Total)

	// lowering the quantity cuts the discount down to the new gross
	ticket, err = h.engine.UpdateQuantity(h.ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.Money(400), ticket.LineItems[0].Discount)
	assert.Equal(t, entity.Money(0), ticket.Total)
	assertTotalsConsistent(t, ticket)
}

func TestOpenTicketKeepsNonEmptyTicketUnlessDiscarded(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})

	first, err := h.engine.OpenTicket(h.ctx, Session{SellerID: "s1"}, false)
	require.NoError(t, err)

	// an empty ticket is replaced without asking
	empty, err := h.engine.OpenTicket(h.ctx, Session{}, false)
	require.NoError(t, err)
	assert.NotEqual(t, first.ClientTicketID, empty.ClientTicketID)

	_, err = h.engine.AddItemByID(h.ctx, "tea", 1)
	require.NoError(t, err)

	_, err = h.engine.OpenTicket(h.ctx, Session{}, false)
	require.ErrorIs(t, err, ErrTicketInProgress)
	current, ok := h.engine.Current()
	require.True(t, ok)
	assert.Equal(t, empty.ClientTicketID, current.ClientTicketID)
	assert.Len(t, current.LineItems, 1)

	fresh, err := h.engine.OpenTicket(h.ctx, Session{}, true)
	require.NoError(t, err)
	assert.NotEqual(t, empty.ClientTicketID, fresh.ClientTicketID)
	assert.True(t, fresh.IsEmpty())
}
