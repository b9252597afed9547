package repository

import (
	"context"

	"github.com/sangkips/tillsync/internal/domain/entity"
)

// IdempotencyRepository stores finalize responses for replay
type IdempotencyRepository interface {
	// GetByKey returns the record for key on endpoint, or nil when none is stored.
	// Expired records are returned; callers check ExpiresAt.
	GetByKey(ctx context.Context, key, endpoint string) (*entity.IdempotencyKey, error)
	// Create stores a response, replacing an earlier record for the same key and endpoint.
	Create(ctx context.Context, ikey *entity.IdempotencyKey) error
	DeleteExpired(ctx context.Context) (int64, error)
}
