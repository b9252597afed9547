package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sangkips/tillsync/internal/domain/entity"
	domainRepo "github.com/sangkips/tillsync/internal/domain/repository"
	"github.com/sangkips/tillsync/pkg/clock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// currentSlot is the only slot used; a till builds one ticket at a time
const currentSlot = "current"

type activeTicketRepository struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewActiveTicketRepository creates a new active ticket repository
func NewActiveTicketRepository(db *gorm.DB, clk clock.Clock) domainRepo.ActiveTicketRepository {
	return &activeTicketRepository{db: db, clock: clk}
}

func (r *activeTicketRepository) Load(ctx context.Context) (*entity.Ticket, error) {
	var row entity.ActiveTicket
	err := r.db.WithContext(ctx).First(&row, "slot = ?", currentSlot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("load active ticket", err)
	}

	var ticket entity.Ticket
	if err := json.Unmarshal(row.Payload, &ticket); err != nil {
		return nil, storageErr("decode active ticket", err)
	}
	return &ticket, nil
}

func (r *activeTicketRepository) Save(ctx context.Context, ticket *entity.Ticket) error {
	payload, err := json.Marshal(ticket)
	if err != nil {
		return storageErr("encode active ticket", err)
	}

	row := entity.ActiveTicket{
		Slot:      currentSlot,
		Payload:   payload,
		UpdatedAt: r.clock.Now().UTC(),
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	return storageErr("save active ticket", err)
}

func (r *activeTicketRepository) Clear(ctx context.Context) error {
	err := r.db.WithContext(ctx).Delete(&entity.ActiveTicket{}, "slot = ?", currentSlot).Error
	return storageErr("clear active ticket", err)
}
