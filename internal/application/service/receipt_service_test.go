package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/internal/domain/enum"
	"github.com/sangkips/tillsync/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPrinter struct {
	mu   sync.Mutex
	jobs [][]byte
	err  error
}

func (p *recordingPrinter) Print(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, append([]byte(nil), data...))
	return nil
}

func (p *recordingPrinter) Ready(context.Context) bool { return p.err == nil }

func TestPrintTicketReceipt(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	p := &recordingPrinter{}
	receipts := NewReceiptService(p, h.tickets, ReceiptConfig{
		PrinterType: "network",
		Header:      entity.ReceiptHeader{StoreName: "Corner Cafe"},
	}, nil)

	_, err := h.engine.NewTicket(h.ctx, Session{SellerID: "amina"})
	require.NoError(t, err)
	_, err = h.engine.AddItemByID(h.ctx, "tea", 2)
	require.NoError(t, err)
	_, err = h.engine.AddPayment(h.ctx, enum.PaymentMethodCash, 1000, "")
	require.NoError(t, err)
	closed, err := h.engine.Finalize(h.ctx)
	require.NoError(t, err)

	receipt, err := receipts.PrintTicket(h.ctx, closed.ClientTicketID)
	require.NoError(t, err)
	assert.Equal(t, entity.Money(500), receipt.Total)
	assert.Equal(t, entity.Money(500), receipt.Change)
	assert.Equal(t, entity.Money(0), receipt.Due)
	assert.Equal(t, enum.SyncStatusPending, receipt.SyncStatus)

	require.Len(t, p.jobs, 1)
	out := string(p.jobs[0])
	assert.Contains(t, out, "Corner Cafe")
	assert.Contains(t, out, "2x Tea")
	assert.Contains(t, out, "5.00")
	assert.Contains(t, out, "Seller:")
	assert.Contains(t, out, "Recorded offline")

	status := receipts.Status(h.ctx)
	assert.True(t, status.Configured)
	assert.True(t, status.Ready)
}

func TestPrintTicketErrors(t *testing.T) {
	h := newHarness(t, false, SyncOptions{})
	p := &recordingPrinter{err: errors.New("paper out")}
	receipts := NewReceiptService(p, h.tickets, ReceiptConfig{}, nil)

	_, err := receipts.PrintTicket(h.ctx, "missing")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.Code)

	id := h.sell(t, "cake", 1)
	receipt, err := receipts.PrintTicket(h.ctx, id)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 503, appErr.Code)
	require.NotNil(t, receipt)
	assert.Equal(t, entity.Money(400), receipt.Due)

	assert.False(t, receipts.Status(h.ctx).Configured)
}
