package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/internal/domain/repository"
	"github.com/sangkips/tillsync/internal/infrastructure/database"
	"github.com/sangkips/tillsync/internal/infrastructure/remote"
	infraRepo "github.com/sangkips/tillsync/internal/infrastructure/repository"
	"github.com/sangkips/tillsync/pkg/clock"
	"github.com/sangkips/tillsync/pkg/connectivity"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

// fakeServer scripts the batch-sync endpoint. The zero value accepts every
// ticket.
type fakeServer struct {
	mu      sync.Mutex
	batches [][]string
	respond func(ids []string) (*remote.SyncResponse, error)
}

func (f *fakeServer) SyncTickets(_ context.Context, entries []entity.SyncEntry) (*remote.SyncResponse, error) {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ClientTicketID)
	}

	f.mu.Lock()
	f.batches = append(f.batches, ids)
	respond := f.respond
	f.mu.Unlock()

	if respond == nil {
		return acceptAll(ids), nil
	}
	return respond(ids)
}

func (f *fakeServer) setResponder(fn func(ids []string) (*remote.SyncResponse, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond = fn
}

func (f *fakeServer) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeServer) lastBatch() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

func acceptAll(ids []string) *remote.SyncResponse {
	resp := &remote.SyncResponse{}
	for _, id := range ids {
		resp.Accepted = append(resp.Accepted, remote.TicketAck{ClientTicketID: id, ServerID: "srv-" + id})
	}
	return resp
}

func rejectAll(reason string) func(ids []string) (*remote.SyncResponse, error) {
	return func(ids []string) (*remote.SyncResponse, error) {
		resp := &remote.SyncResponse{}
		for _, id := range ids {
			resp.Rejected = append(resp.Rejected, remote.TicketRejection{ClientTicketID: id, Error: reason})
		}
		return resp, nil
	}
}

type harness struct {
	ctx     context.Context
	clock   *clock.Fake
	network *connectivity.Publisher
	server  *fakeServer
	tickets repository.TicketRepository
	active  repository.ActiveTicketRepository
	catalog repository.CatalogRepository
	syncer  *SyncService
	engine  *TicketService
}

func newHarness(t *testing.T, online bool, opts SyncOptions) *harness {
	t.Helper()

	db, err := database.NewSQLiteDB(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	h := &harness{
		ctx:     context.Background(),
		clock:   clock.NewFake(epoch),
		network: connectivity.NewPublisher(online),
		server:  &fakeServer{},
	}
	h.tickets = infraRepo.NewTicketRepository(db, h.clock)
	h.active = infraRepo.NewActiveTicketRepository(db, h.clock)
	h.catalog = infraRepo.NewCatalogRepository(db, h.clock)
	h.syncer = NewSyncService(h.tickets, h.server, h.network, h.clock, opts, nil)
	h.engine = NewTicketService(h.active, h.catalog, h.syncer, h.clock, nil)

	require.NoError(t, h.catalog.CacheCatalog(h.ctx, []entity.CachedProduct{
		{ID: "tea", Name: "Tea", Code: "T1", Price: 250, Active: true},
		{ID: "cake", Name: "Cake", Code: "C1", Price: 400, Active: true},
		{ID: "old", Name: "Retired", Code: "R1", Price: 100, Active: false},
	}, nil))

	t.Cleanup(func() {
		h.syncer.Stop()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return h
}

// sell builds and finalizes a one-line ticket, returning its id
func (h *harness) sell(t *testing.T, productID string, qty int) string {
	t.Helper()
	_, err := h.engine.NewTicket(h.ctx, Session{ShiftID: "shift-1", SellerID: "seller-1"})
	require.NoError(t, err)
	_, err = h.engine.AddItemByID(h.ctx, productID, qty)
	require.NoError(t, err)
	closed, err := h.engine.Finalize(h.ctx)
	require.NoError(t, err)
	return closed.ClientTicketID
}

func (h *harness) entry(t *testing.T, id string) *entity.SyncEntry {
	t.Helper()
	e, err := h.tickets.GetEntry(h.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, e, id)
	return e
}
