package repository

import (
	"context"

	"github.com/tuitionhub/backend/internal/models"
	"gorm.io/gorm"
)

type StaffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

type StaffFilter struct {
	Page     int
	PageSize int
	Keyword  string
	IsActive *bool
}

// ListActive returns every active staff member ordered by id.
func (r *StaffRepository) ListActive(ctx context.Context) ([]models.Staff, error) {
	var staff []models.Staff
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&staff).Error; err != nil {
		return nil, err
	}
	return staff, nil
}

// Get returns a staff member by id regardless of active status.
func (r *StaffRepository) Get(ctx context.Context, id uint) (*models.Staff, error) {
	var staff models.Staff
	if err := r.db.WithContext(ctx).First(&staff, id).Error; err != nil {
		return nil, translate(err)
	}
	return &staff, nil
}

func (r *StaffRepository) List(ctx context.Context, f StaffFilter) ([]models.Staff, int64, error) {
	page, pageSize := normalizePage(f.Page, f.PageSize)

	query := r.db.WithContext(ctx).Model(&models.Staff{})
	if f.Keyword != "" {
		like := "%" + f.Keyword + "%"
		query = query.Where("name LIKE ? OR email LIKE ?", like, like)
	}
	if f.IsActive != nil {
		query = query.Where("is_active = ?", *f.IsActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var staff []models.Staff
	if err := query.Order("name ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&staff).Error; err != nil {
		return nil, 0, err
	}
	return staff, total, nil
}

func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	return r.db.WithContext(ctx).Create(staff).Error
}

// Update writes the given columns only; a nil map is a no-op.
func (r *StaffRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (*models.Staff, error) {
	staff, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := r.db.WithContext(ctx).Model(staff).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return r.Get(ctx, id)
}

// Delete soft-deletes the staff row and disables any login bound to it in the
// same transaction.
func (r *StaffRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Staff{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.User{}).
			Where(map[string]interface{}{"staff_id": id}).
			Update("is_active", false).Error
	})
}
