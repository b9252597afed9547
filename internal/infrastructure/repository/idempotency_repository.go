package repository

import (
	"context"
	"errors"

	"github.com/sangkips/tillsync/internal/domain/entity"
	domainRepo "github.com/sangkips/tillsync/internal/domain/repository"
	"github.com/sangkips/tillsync/pkg/clock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type idempotencyRepository struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewIdempotencyRepository creates a new idempotency repository
func NewIdempotencyRepository(db *gorm.DB, clk clock.Clock) domainRepo.IdempotencyRepository {
	return &idempotencyRepository{db: db, clock: clk}
}

func (r *idempotencyRepository) GetByKey(ctx context.Context, key, endpoint string) (*entity.IdempotencyKey, error) {
	var ikey entity.IdempotencyKey
	err := r.db.WithContext(ctx).
		Where("key = ? AND endpoint = ?", key, endpoint).
		First(&ikey).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get idempotency key", err)
	}
	return &ikey, nil
}

// Create stores a key, replacing an expired record for the same key and
// endpoint
func (r *idempotencyRepository) Create(ctx context.Context, ikey *entity.IdempotencyKey) error {
	ikey.ExpiresAt = ikey.ExpiresAt.UTC()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}, {Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"response_code", "response_body", "expires_at"}),
		}).
		Create(ikey).Error
	return storageErr("create idempotency key", err)
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", r.clock.Now().UTC()).
		Delete(&entity.IdempotencyKey{})
	if res.Error != nil {
		return 0, storageErr("delete expired idempotency keys", res.Error)
	}
	return res.RowsAffected, nil
}
