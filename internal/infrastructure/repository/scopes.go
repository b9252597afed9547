package repository

import (
	"errors"
	"time"

	"github.com/sangkips/tillsync/internal/domain/enum"
	"github.com/sangkips/tillsync/pkg/apperror"
	"gorm.io/gorm"
)

// StatusIn returns a GORM scope that filters records by sync status
func StatusIn(statuses ...enum.SyncStatus) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 0 {
			return db
		}
		return db.Where("status IN ?", statuses)
	}
}

// SyncedBefore returns a GORM scope matching synced records confirmed before cutoff
func SyncedBefore(cutoff time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ? AND synced_at < ?", enum.SyncStatusSynced, cutoff)
	}
}

// OldestFirst orders queue records by creation time, breaking ties by id
func OldestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("client_ticket_id ASC")
}

// storageErr wraps driver failures as storage errors. Application errors
// raised inside a transaction pass through unchanged.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.NewStorageError(op, err)
}
