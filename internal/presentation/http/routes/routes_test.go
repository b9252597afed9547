package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/tillsync/internal/application/service"
	"github.com/sangkips/tillsync/internal/config"
	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/internal/domain/enum"
	"github.com/sangkips/tillsync/internal/infrastructure/database"
	"github.com/sangkips/tillsync/internal/infrastructure/remote"
	"github.com/sangkips/tillsync/internal/infrastructure/repository"
	"github.com/sangkips/tillsync/internal/presentation/http/handler"
	"github.com/sangkips/tillsync/internal/presentation/http/middleware"
	"github.com/sangkips/tillsync/pkg/apperror"
	"github.com/sangkips/tillsync/pkg/clock"
	"github.com/sangkips/tillsync/pkg/connectivity"
	"github.com/sangkips/tillsync/pkg/pagination"
	"github.com/sangkips/tillsync/pkg/printer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Data    json.RawMessage       `json:"data"`
	Errors  []apperror.FieldError `json:"errors"`
	Meta    struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

// acceptingServer accepts every ticket and serves a one-product catalog
type acceptingServer struct{}

func (acceptingServer) SyncTickets(_ context.Context, entries []entity.SyncEntry) (*remote.SyncResponse, error) {
	resp := &remote.SyncResponse{}
	for _, e := range entries {
		resp.Accepted = append(resp.Accepted, remote.TicketAck{ClientTicketID: e.ClientTicketID, ServerID: "srv-" + e.ClientTicketID})
	}
	return resp, nil
}

func (acceptingServer) FetchCatalog(context.Context) (*remote.CatalogResponse, error) {
	return &remote.CatalogResponse{
		Products: []entity.CachedProduct{{ID: "scone", Name: "Scone", Code: "S1", Price: 180, Active: true}},
	}, nil
}

type api struct {
	t       *testing.T
	router  *gin.Engine
	network *connectivity.Publisher
	syncer  *service.SyncService
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewSQLiteDB(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	ctx, cancel := context.WithCancel(context.Background())
	clk := clock.NewFake(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	network := connectivity.NewPublisher(false)

	tickets := repository.NewTicketRepository(db, clk)
	catalog := repository.NewCatalogRepository(db, clk)
	require.NoError(t, catalog.CacheCatalog(ctx, []entity.CachedProduct{
		{ID: "tea", Name: "Tea", Code: "T1", Price: 250, Active: true, Favorite: true},
		{ID: "cake", Name: "Cake", Code: "C1", Price: 400, Active: true},
	}, nil))

	syncer := service.NewSyncService(tickets, acceptingServer{}, network, clk, service.SyncOptions{}, logger)
	engine := service.NewTicketService(repository.NewActiveTicketRepository(db, clk), catalog, syncer, clk, logger)
	catalogSvc := service.NewCatalogService(catalog, acceptingServer{}, network, clk, 0, logger)
	syncer.Start(ctx)

	router := Setup(ctx, &Handlers{
		Ticket:       handler.NewTicketHandler(engine),
		Catalog:      handler.NewCatalogHandler(catalogSvc),
		Sync:         handler.NewSyncHandler(syncer),
		Connectivity: handler.NewConnectivityHandler(network),
		Receipt:      handler.NewReceiptHandler(service.NewReceiptService(printer.NewNullPrinter(), tickets, service.ReceiptConfig{Header: entity.ReceiptHeader{StoreName: "Till 1"}}, logger)),
	}, &Deps{
		Cfg: &config.Config{
			App:       config.AppConfig{Name: "tillsync"},
			RateLimit: config.RateLimitConfig{Requests: 1000, Duration: 1},
		},
		IdempotencyRepo: repository.NewIdempotencyRepository(db, clk),
		Clock:           clk,
		Logger:          logger,
	})

	t.Cleanup(func() {
		syncer.Stop()
		cancel()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &api{t: t, router: router, network: network, syncer: syncer}
}

func (a *api) do(method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tillsync")
}

func TestTicketLifecycle(t *testing.T) {
	a := newAPI(t)

	w, _ := a.do(http.MethodGet, "/api/v1/tickets/current", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := a.do(http.MethodPost, "/api/v1/tickets", map[string]any{"shift_id": "shift-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, env.Meta.RequestID)
	assert.Equal(t, env.Meta.RequestID, w.Header().Get("X-Request-ID"))

	w, env = a.do(http.MethodPost, "/api/v1/tickets/current/items", map[string]any{"product_id": "tea", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ticket := decode[entity.Ticket](t, env.Data)
	assert.Equal(t, entity.Money(500), ticket.Total)
	assert.Contains(t, string(env.Data), `"total":"5.00"`)

	// discard guard
	w, _ = a.do(http.MethodPost, "/api/v1/tickets", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = a.do(http.MethodPost, "/api/v1/tickets", map[string]any{"discard": true})
	require.Equal(t, http.StatusCreated, w.Code)
	fresh := decode[entity.Ticket](t, env.Data)
	assert.NotEqual(t, ticket.ClientTicketID, fresh.ClientTicketID)
	assert.True(t, fresh.IsEmpty())

	_, _ = a.do(http.MethodPost, "/api/v1/tickets/current/items", map[string]any{"product_id": "cake", "quantity": 1})
	_, _ = a.do(http.MethodPost, "/api/v1/tickets/current/items", map[string]any{"product_id": "tea", "quantity": 1})

	w, env = a.do(http.MethodPut, "/api/v1/tickets/current/items/0/discount", map[string]any{"amount": "0.50"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, entity.Money(600), decode[entity.Ticket](t, env.Data).Total)

	w, _ = a.do(http.MethodPut, "/api/v1/tickets/current/items/1/note", map[string]any{"note": "to go"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = a.do(http.MethodPut, "/api/v1/tickets/current/items/1", map[string]any{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.Money(1100), decode[entity.Ticket](t, env.Data).Total)

	w, env = a.do(http.MethodPost, "/api/v1/tickets/current/payments", map[string]any{"method": "CASH", "amount": 11})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decode[entity.Ticket](t, env.Data)
	require.Len(t, paid.Payments, 1)
	assert.Equal(t, enum.PaymentMethodCash, paid.Payments[0].Method)
	assert.Equal(t, entity.Money(0), paid.Balance())

	w, env = a.do(http.MethodPost, "/api/v1/tickets/current/finalize", nil, middleware.IdempotencyKeyHeader, "fin-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	closed := decode[entity.Ticket](t, env.Data)
	assert.Equal(t, enum.TicketStatusClosed, closed.Status)
	assert.Equal(t, fresh.ClientTicketID, closed.ClientTicketID)

	// a retried finalize replays instead of failing with no active ticket
	w, env = a.do(http.MethodPost, "/api/v1/tickets/current/finalize", nil, middleware.IdempotencyKeyHeader, "fin-1")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Header().Get(middleware.IdempotencyReplayedHeader))
	assert.Equal(t, closed.ClientTicketID, decode[entity.Ticket](t, env.Data).ClientTicketID)

	w, env = a.do(http.MethodPost, "/api/v1/tickets/current/finalize", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "no_active_ticket", env.Errors[0].Field)
}

func TestTicketValidationErrors(t *testing.T) {
	a := newAPI(t)
	_, _ = a.do(http.MethodPost, "/api/v1/tickets", nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		field  string
	}{
		{"missing product id", http.MethodPost, "/api/v1/tickets/current/items", map[string]any{"quantity": 1}, http.StatusBadRequest, ""},
		{"unknown product", http.MethodPost, "/api/v1/tickets/current/items", map[string]any{"product_id": "nope", "quantity": 1}, http.StatusUnprocessableEntity, "invalid_product"},
		{"bad index", http.MethodPut, "/api/v1/tickets/current/items/abc", map[string]any{"quantity": 1}, http.StatusBadRequest, ""},
		{"index out of range", http.MethodDelete, "/api/v1/tickets/current/items/3", nil, http.StatusUnprocessableEntity, "invalid_index"},
		{"card without reference", http.MethodPost, "/api/v1/tickets/current/payments", map[string]any{"method": "card", "amount": "4.00"}, http.StatusUnprocessableEntity, "missing_reference"},
		{"empty finalize", http.MethodPost, "/api/v1/tickets/current/finalize", nil, http.StatusUnprocessableEntity, "empty_ticket"},
		{"credit without member", http.MethodPut, "/api/v1/tickets/current/credit", map[string]any{}, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := a.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.False(t, env.Success)
			if tt.field != "" {
				require.Len(t, env.Errors, 1)
				assert.Equal(t, tt.field, env.Errors[0].Field)
			}
		})
	}
}

func TestCreditEndpoints(t *testing.T) {
	a := newAPI(t)
	_, _ = a.do(http.MethodPost, "/api/v1/tickets", nil)

	w, env := a.do(http.MethodPut, "/api/v1/tickets/current/credit", map[string]any{"member_id": "m-42"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[entity.Ticket](t, env.Data).IsCredit)

	w, env = a.do(http.MethodDelete, "/api/v1/tickets/current/credit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[entity.Ticket](t, env.Data).IsCredit)
}

func TestSyncEndpointsFollowConnectivity(t *testing.T) {
	a := newAPI(t)

	_, _ = a.do(http.MethodPost, "/api/v1/tickets", nil)
	_, _ = a.do(http.MethodPost, "/api/v1/tickets/current/items", map[string]any{"product_id": "tea", "quantity": 1})
	w, env := a.do(http.MethodPost, "/api/v1/tickets/current/finalize", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[entity.Ticket](t, env.Data).ClientTicketID

	w, env = a.do(http.MethodPost, "/api/v1/sync/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.SkipOffline, decode[service.CycleResult](t, env.Data).Skipped)

	w, env = a.do(http.MethodGet, "/api/v1/sync/entries?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[pagination.PaginatedResult[entity.SyncEntry]](t, env.Data)
	require.Len(t, page.Items, 1)
	assert.Equal(t, id, page.Items[0].ClientTicketID)
	assert.Equal(t, int64(1), page.Pagination.Total)

	w, _ = a.do(http.MethodGet, "/api/v1/sync/entries?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = a.do(http.MethodPut, "/api/v1/connectivity", map[string]any{"online": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"changed":true`)
	a.syncer.Wait()

	w, env = a.do(http.MethodGet, "/api/v1/sync/entries/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entry := decode[entity.SyncEntry](t, env.Data)
	assert.Equal(t, enum.SyncStatusSynced, entry.Status)
	require.NotNil(t, entry.ServerID)
	assert.Equal(t, "srv-"+id, *entry.ServerID)

	w, env = a.do(http.MethodGet, "/api/v1/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[service.SyncStatusReport](t, env.Data)
	assert.True(t, status.Online)
	assert.Equal(t, int64(1), status.Counts[enum.SyncStatusSynced])

	w, _ = a.do(http.MethodPost, "/api/v1/sync/entries/"+id+"/resubmit", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = a.do(http.MethodPost, "/api/v1/sync/entries/unknown/resubmit", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = a.do(http.MethodGet, "/api/v1/sync/entries/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = a.do(http.MethodPut, "/api/v1/connectivity", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = a.do(http.MethodPost, "/api/v1/receipts/"+id+"/print", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	receipt := decode[entity.Receipt](t, env.Data)
	assert.Equal(t, enum.SyncStatusSynced, receipt.SyncStatus)
	assert.Equal(t, "Till 1", receipt.Header.StoreName)

	w, _ = a.do(http.MethodGet, "/api/v1/receipts/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = a.do(http.MethodGet, "/api/v1/printer/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"configured":false`)
}

func TestCatalogEndpoints(t *testing.T) {
	a := newAPI(t)

	w, env := a.do(http.MethodGet, "/api/v1/catalog/products?favorite=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	products := decode[[]entity.CachedProduct](t, env.Data)
	require.Len(t, products, 1)
	assert.Equal(t, "tea", products[0].ID)

	w, env = a.do(http.MethodGet, "/api/v1/catalog/products?search=ca", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]entity.CachedProduct](t, env.Data), 1)

	w, _ = a.do(http.MethodGet, "/api/v1/catalog/products/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = a.do(http.MethodPost, "/api/v1/catalog/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	a.network.Set(true)
	a.syncer.Wait()
	w, env = a.do(http.MethodPost, "/api/v1/catalog/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[service.RefreshResult](t, env.Data).Products)

	w, env = a.do(http.MethodGet, "/api/v1/catalog/products/scone", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Scone", decode[entity.CachedProduct](t, env.Data).Name)

	w, env = a.do(http.MethodGet, "/api/v1/catalog/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]entity.CachedCategory](t, env.Data))
}
