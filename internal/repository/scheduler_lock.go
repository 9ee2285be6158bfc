package repository

import (
	"context"
	"time"

	"github.com/tuitionhub/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SchedulerLockRepository struct {
	db *gorm.DB
}

func NewSchedulerLockRepository(db *gorm.DB) *SchedulerLockRepository {
	return &SchedulerLockRepository{db: db}
}

// TryAcquire claims (name, key) for owner until now+ttl. It returns false when another
// owner holds an unexpired lock. Expired locks are cleared first.
func (r *SchedulerLockRepository) TryAcquire(ctx context.Context, name, key, owner string, ttl time.Duration, now time.Time) (bool, error) {
	db := r.db.WithContext(ctx)
	now = now.UTC()

	if err := db.Where("lock_name = ? AND lock_key = ? AND expires_at < ?", name, key, now).
		Delete(&models.SchedulerLock{}).Error; err != nil {
		return false, err
	}

	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  owner,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *SchedulerLockRepository) Release(ctx context.Context, name, key, owner string) error {
	return r.db.WithContext(ctx).
		Where("lock_name = ? AND lock_key = ? AND locked_by = ?", name, key, owner).
		Delete(&models.SchedulerLock{}).Error
}
