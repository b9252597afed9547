package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/internal/domain/enum"
	domainRepo "github.com/sangkips/tillsync/internal/domain/repository"
	"github.com/sangkips/tillsync/pkg/apperror"
	"github.com/sangkips/tillsync/pkg/clock"
	"github.com/sangkips/tillsync/pkg/pagination"
	"gorm.io/gorm"
)

type ticketRepository struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewTicketRepository creates a new offline ticket and sync queue repository
func NewTicketRepository(db *gorm.DB, clk clock.Clock) domainRepo.TicketRepository {
	return &ticketRepository{db: db, clock: clk}
}

func (r *ticketRepository) now() time.Time {
	return r.clock.Now().UTC()
}

func (r *ticketRepository) SaveOfflineTicket(ctx context.Context, ticket *entity.Ticket) (*entity.SyncEntry, error) {
	payload, err := json.Marshal(ticket)
	if err != nil {
		return nil, storageErr("encode ticket", err)
	}

	now := r.now()
	var entry entity.SyncEntry
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&entry, "client_ticket_id = ?", ticket.ClientTicketID).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		record := entity.OfflineTicket{
			ClientTicketID: ticket.ClientTicketID,
			Payload:        payload,
			Status:         enum.SyncStatusPending,
			ShiftID:        ticket.ShiftID,
			SellerID:       ticket.SellerID,
			Total:          ticket.Total,
			ItemCount:      ticket.ItemCount(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		entry = entity.SyncEntry{
			ClientTicketID: ticket.ClientTicketID,
			Payload:        payload,
			Status:         enum.SyncStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, storageErr("save offline ticket", err)
	}
	return &entry, nil
}

func (r *ticketRepository) MarkSynced(ctx context.Context, clientTicketID, serverID string) error {
	now := r.now()
	var sid *string
	if serverID != "" {
		sid = &serverID
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.SyncEntry{}).
			Where("client_ticket_id = ?", clientTicketID).
			Updates(map[string]interface{}{
				"status":        enum.SyncStatusSynced,
				"server_id":     sid,
				"last_error":    "",
				"next_retry_at": nil,
				"synced_at":     now,
				"updated_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NewNotFoundError("Sync entry")
		}

		return tx.Model(&entity.OfflineTicket{}).
			Where("client_ticket_id = ?", clientTicketID).
			Updates(map[string]interface{}{
				"status":     enum.SyncStatusSynced,
				"server_id":  sid,
				"synced_at":  now,
				"updated_at": now,
			}).Error
	})
	return storageErr("mark synced", err)
}

func (r *ticketRepository) MarkFailed(ctx context.Context, clientTicketID, reason string, nextRetryAt *time.Time) (*entity.SyncEntry, error) {
	now := r.now()
	var retryAt *time.Time
	if nextRetryAt != nil {
		t := nextRetryAt.UTC()
		retryAt = &t
	}

	var entry entity.SyncEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.SyncEntry{}).
			Where("client_ticket_id = ?", clientTicketID).
			Updates(map[string]interface{}{
				"status":        enum.SyncStatusFailed,
				"attempts":      gorm.Expr("attempts + 1"),
				"last_error":    reason,
				"next_retry_at": retryAt,
				"updated_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NewNotFoundError("Sync entry")
		}

		if err := tx.Model(&entity.OfflineTicket{}).
			Where("client_ticket_id = ?", clientTicketID).
			Updates(map[string]interface{}{
				"status":     enum.SyncStatusFailed,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		return tx.First(&entry, "client_ticket_id = ?", clientTicketID).Error
	})
	if err != nil {
		return nil, storageErr("mark failed", err)
	}
	return &entry, nil
}

func (r *ticketRepository) Requeue(ctx context.Context, clientTicketID string, resetAttempts bool) error {
	now := r.now()
	updates := map[string]interface{}{
		"status":        enum.SyncStatusPending,
		"next_retry_at": nil,
		"updated_at":    now,
	}
	if resetAttempts {
		updates["attempts"] = 0
		updates["last_error"] = ""
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry entity.SyncEntry
		err := tx.First(&entry, "client_ticket_id = ?", clientTicketID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NewNotFoundError("Sync entry")
		}
		if err != nil {
			return err
		}
		if entry.Status == enum.SyncStatusSynced {
			return apperror.NewConflictError("Ticket " + clientTicketID + " is already synced")
		}

		if err := tx.Model(&entity.SyncEntry{}).
			Where("client_ticket_id = ?", clientTicketID).
			Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&entity.OfflineTicket{}).
			Where("client_ticket_id = ?", clientTicketID).
			Updates(map[string]interface{}{
				"status":     enum.SyncStatusPending,
				"updated_at": now,
			}).Error
	})
	return storageErr("requeue", err)
}

func (r *ticketRepository) PendingSyncEntries(ctx context.Context) ([]entity.SyncEntry, error) {
	entries := []entity.SyncEntry{}
	err := r.db.WithContext(ctx).
		Scopes(StatusIn(enum.SyncStatusPending, enum.SyncStatusFailed), OldestFirst).
		Find(&entries).Error
	if err != nil {
		return nil, storageErr("pending sync entries", err)
	}
	return entries, nil
}

func (r *ticketRepository) GetEntry(ctx context.Context, clientTicketID string) (*entity.SyncEntry, error) {
	var entry entity.SyncEntry
	err := r.db.WithContext(ctx).First(&entry, "client_ticket_id = ?", clientTicketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get sync entry", err)
	}
	return &entry, nil
}

func (r *ticketRepository) GetOfflineTicket(ctx context.Context, clientTicketID string) (*entity.OfflineTicket, error) {
	var record entity.OfflineTicket
	err := r.db.WithContext(ctx).First(&record, "client_ticket_id = ?", clientTicketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get offline ticket", err)
	}
	return &record, nil
}

func (r *ticketRepository) ListEntries(ctx context.Context, params *domainRepo.EntryFilterParams) ([]entity.SyncEntry, int64, error) {
	entries := []entity.SyncEntry{}
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.SyncEntry{})
	if params.Status != nil {
		query = query.Scopes(StatusIn(*params.Status))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageErr("count sync entries", err)
	}

	if params.Pagination == nil {
		params.Pagination = pagination.DefaultPagination()
	}
	params.Pagination.Validate()
	err := query.Offset(params.Pagination.Offset()).Limit(params.Pagination.PerPage).
		Scopes(OldestFirst).
		Find(&entries).Error
	if err != nil {
		return nil, 0, storageErr("list sync entries", err)
	}
	return entries, total, nil
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[enum.SyncStatus]int64, error) {
	var rows []struct {
		Status enum.SyncStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&entity.SyncEntry{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("count by status", err)
	}

	counts := map[enum.SyncStatus]int64{
		enum.SyncStatusPending: 0,
		enum.SyncStatusSynced:  0,
		enum.SyncStatusFailed:  0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *ticketRepository) PruneSynced(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays < 0 {
		olderThanDays = 0
	}
	cutoff := r.now().AddDate(0, 0, -olderThanDays)

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Scopes(SyncedBefore(cutoff)).Delete(&entity.SyncEntry{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return tx.Scopes(SyncedBefore(cutoff)).Delete(&entity.OfflineTicket{}).Error
	})
	if err != nil {
		return 0, storageErr("prune synced", err)
	}
	return deleted, nil
}
