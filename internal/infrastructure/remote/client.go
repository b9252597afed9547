package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/pkg/apperror"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	syncTicketsPath = "/api/v1/sync/tickets"
	catalogPath     = "/api/v1/catalog"

	maxErrorBody = 4 << 10
)

// Config holds the remote server settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the back-office server. It never retries; retry policy
// belongs to the caller.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a traced client. A nil transport uses http.DefaultTransport.
func NewClient(cfg Config, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
	}
}

// SyncRequest is the batch-sync request body
type SyncRequest struct {
	Tickets []json.RawMessage `json:"tickets"`
}

// TicketAck confirms one ticket, either newly accepted or already known
type TicketAck struct {
	ClientTicketID string `json:"client_ticket_id"`
	ServerID       string `json:"server_id"`
}

// TicketRejection is a per-ticket business rejection
type TicketRejection struct {
	ClientTicketID string `json:"client_ticket_id"`
	Error          string `json:"error"`
}

// SyncResponse classifies every ticket the server looked at
type SyncResponse struct {
	Accepted  []TicketAck       `json:"accepted"`
	Duplicate []TicketAck       `json:"duplicate"`
	Rejected  []TicketRejection `json:"rejected"`
}

// CatalogResponse is the catalog snapshot served by the back office
type CatalogResponse struct {
	Products   []entity.CachedProduct  `json:"products"`
	Categories []entity.CachedCategory `json:"categories"`
}

// SyncTickets submits the payloads of entries in one batch request, in the
// order given. Transport failures, non-2xx responses and undecodable bodies
// are returned as *apperror.NetworkError.
func (c *Client) SyncTickets(ctx context.Context, entries []entity.SyncEntry) (*SyncResponse, error) {
	const op = "sync tickets"

	body := SyncRequest{Tickets: make([]json.RawMessage, 0, len(entries))}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		body.Tickets = append(body.Tickets, e.Payload)
		ids = append(ids, e.ClientTicketID)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode sync request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+syncTicketsPath, bytes.NewReader(raw))
	if err != nil {
		return nil, &apperror.NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", BatchKey(ids))

	var out SyncResponse
	if err := c.do(req, op, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchCatalog downloads the full product and category catalog
func (c *Client) FetchCatalog(ctx context.Context) (*CatalogResponse, error) {
	const op = "fetch catalog"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+catalogPath, nil)
	if err != nil {
		return nil, &apperror.NetworkError{Op: op, Err: err}
	}

	var out CatalogResponse
	if err := c.do(req, op, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperror.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apperror.NetworkError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperror.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// BatchKey derives a stable batch idempotency key from the ticket ids,
// independent of their order.
func BatchKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])
}
