package repository

import (
	"context"
	"time"

	"github.com/tuitionhub/backend/internal/models"
	"gorm.io/gorm"
)

type TeachingHourRepository struct {
	db *gorm.DB
}

func NewTeachingHourRepository(db *gorm.DB) *TeachingHourRepository {
	return &TeachingHourRepository{db: db}
}

type TeachingHourFilter struct {
	Page     int
	PageSize int
	StaffID  uint
	From     *time.Time
	To       *time.Time
}

// FindByStaffAndRange returns the staff member's records with start <= date <= end,
// oldest first, read in a single query.
func (r *TeachingHourRepository) FindByStaffAndRange(ctx context.Context, staffID uint, start, end time.Time) ([]models.TeachingHour, error) {
	var hours []models.TeachingHour
	err := r.db.WithContext(ctx).
		Where("staff_id = ? AND date >= ? AND date <= ?", staffID, start.UTC(), end.UTC()).
		Order("date ASC, id ASC").
		Find(&hours).Error
	if err != nil {
		return nil, err
	}
	return hours, nil
}

func (r *TeachingHourRepository) Create(ctx context.Context, hour *models.TeachingHour) error {
	return r.db.WithContext(ctx).Create(hour).Error
}

func (r *TeachingHourRepository) Get(ctx context.Context, id uint) (*models.TeachingHour, error) {
	var hour models.TeachingHour
	if err := r.db.WithContext(ctx).First(&hour, id).Error; err != nil {
		return nil, translate(err)
	}
	return &hour, nil
}

func (r *TeachingHourRepository) List(ctx context.Context, f TeachingHourFilter) ([]models.TeachingHour, int64, error) {
	page, pageSize := normalizePage(f.Page, f.PageSize)

	query := r.db.WithContext(ctx).Model(&models.TeachingHour{})
	if f.StaffID != 0 {
		query = query.Where("staff_id = ?", f.StaffID)
	}
	if f.From != nil {
		query = query.Where("date >= ?", f.From.UTC())
	}
	if f.To != nil {
		query = query.Where("date <= ?", f.To.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var hours []models.TeachingHour
	if err := query.Order("date DESC, id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&hours).Error; err != nil {
		return nil, 0, err
	}
	return hours, total, nil
}

func (r *TeachingHourRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.TeachingHour{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
