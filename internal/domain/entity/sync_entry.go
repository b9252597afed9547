package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sangkips/tillsync/internal/domain/enum"
)

// SyncEntry is one finalized ticket awaiting confirmation from the server.
// ClientTicketID is the idempotency key presented on every submission.
type SyncEntry struct {
	ClientTicketID string          `gorm:"primaryKey;size:64" json:"client_ticket_id"`
	Payload        json.RawMessage `gorm:"not null" json:"payload"`
	Status         enum.SyncStatus `gorm:"size:16;not null;index:idx_sync_queue_status_created,priority:1" json:"status"`
	Attempts       int             `gorm:"not null;default:0" json:"attempts"`
	LastError      string          `gorm:"type:text" json:"last_error,omitempty"`
	ServerID       *string         `gorm:"size:128" json:"server_id,omitempty"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty"`
	SyncedAt       *time.Time      `gorm:"index" json:"synced_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;index:idx_sync_queue_status_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName returns the table name for the SyncEntry model
func (SyncEntry) TableName() string {
	return "sync_queue"
}

// Ticket decodes the closed ticket carried by the entry
func (e *SyncEntry) Ticket() (*Ticket, error) {
	var t Ticket
	if err := json.Unmarshal(e.Payload, &t); err != nil {
		return nil, fmt.Errorf("decode payload for %s: %w", e.ClientTicketID, err)
	}
	return &t, nil
}

// IsDue reports whether a failed entry's backoff has elapsed at now
func (e *SyncEntry) IsDue(now time.Time) bool {
	return e.NextRetryAt == nil || !e.NextRetryAt.After(now)
}

// OfflineTicket is the durable record of a closed ticket. Its Status always
// mirrors the sync queue entry with the same ClientTicketID.
type OfflineTicket struct {
	ClientTicketID string          `gorm:"primaryKey;size:64" json:"client_ticket_id"`
	Payload        json.RawMessage `gorm:"not null" json:"payload"`
	Status         enum.SyncStatus `gorm:"size:16;not null;index" json:"status"`
	ServerID       *string         `gorm:"size:128" json:"server_id,omitempty"`
	ShiftID        *string         `gorm:"size:64;index" json:"shift_id,omitempty"`
	SellerID       *string         `gorm:"size:64" json:"seller_id,omitempty"`
	Total          Money           `gorm:"not null;default:0" json:"total"`
	ItemCount      int             `gorm:"not null;default:0" json:"item_count"`
	SyncedAt       *time.Time      `gorm:"index" json:"synced_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName returns the table name for the OfflineTicket model
func (OfflineTicket) TableName() string {
	return "offline_tickets"
}

// Ticket decodes the closed ticket
func (o *OfflineTicket) Ticket() (*Ticket, error) {
	var t Ticket
	if err := json.Unmarshal(o.Payload, &t); err != nil {
		return nil, fmt.Errorf("decode payload for %s: %w", o.ClientTicketID, err)
	}
	return &t, nil
}

// ActiveTicket is the single-row slot holding the ticket being built, so an
// open cart survives a restart.
type ActiveTicket struct {
	Slot      string          `gorm:"primaryKey;size:32"`
	Payload   json.RawMessage `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for the ActiveTicket model
func (ActiveTicket) TableName() string {
	return "active_tickets"
}
