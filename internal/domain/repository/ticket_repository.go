package repository

import (
	"context"
	"time"

	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/internal/domain/enum"
	"github.com/sangkips/tillsync/pkg/pagination"
)

// TicketRepository defines the interface for closed-ticket records and the
// sync queue. Every state transition updates both in one transaction.
type TicketRepository interface {
	// SaveOfflineTicket records a closed ticket and creates its pending queue
	// entry. Saving an id that already exists returns the existing entry.
	SaveOfflineTicket(ctx context.Context, ticket *entity.Ticket) (*entity.SyncEntry, error)
	MarkSynced(ctx context.Context, clientTicketID, serverID string) error
	// MarkFailed increments the attempt count and records the error.
	MarkFailed(ctx context.Context, clientTicketID, reason string, nextRetryAt *time.Time) (*entity.SyncEntry, error)
	// Requeue moves a failed entry back to pending.
	Requeue(ctx context.Context, clientTicketID string, resetAttempts bool) error
	// PendingSyncEntries returns pending and failed entries, oldest first.
	PendingSyncEntries(ctx context.Context) ([]entity.SyncEntry, error)
	GetEntry(ctx context.Context, clientTicketID string) (*entity.SyncEntry, error)
	GetOfflineTicket(ctx context.Context, clientTicketID string) (*entity.OfflineTicket, error)
	ListEntries(ctx context.Context, params *EntryFilterParams) ([]entity.SyncEntry, int64, error)
	CountByStatus(ctx context.Context) (map[enum.SyncStatus]int64, error)
	// PruneSynced deletes synced records older than the cutoff. Pending and
	// failed records are never deleted.
	PruneSynced(ctx context.Context, olderThanDays int) (int64, error)
}

// EntryFilterParams contains filtering parameters for sync entry listings
type EntryFilterParams struct {
	Pagination *pagination.PaginationParams
	Status     *enum.SyncStatus
}

// ActiveTicketRepository persists the ticket currently being built
type ActiveTicketRepository interface {
	// Load returns nil when no ticket is persisted
	Load(ctx context.Context) (*entity.Ticket, error)
	Save(ctx context.Context, ticket *entity.Ticket) error
	Clear(ctx context.Context) error
}
