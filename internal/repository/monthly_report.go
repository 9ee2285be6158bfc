package repository

import (
	"context"
	"time"

	"github.com/tuitionhub/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// recomputedColumns are overwritten on every regeneration. email_sent_at and
// created_at are deliberately absent so they survive an upsert.
var recomputedColumns = []string{
	"staff_name",
	"staff_email",
	"total_hours",
	"subject_breakdown",
	"start_date",
	"end_date",
	"generated_at",
	"updated_at",
}

type MonthlyReportRepository struct {
	db *gorm.DB
}

func NewMonthlyReportRepository(db *gorm.DB) *MonthlyReportRepository {
	return &MonthlyReportRepository{db: db}
}

type MonthlyReportFilter struct {
	Page     int
	PageSize int
	Month    int
	Year     int
	StaffID  uint
}

// Upsert inserts the report or overwrites the computed fields of the row with the same
// (staff_id, month, year), then returns the stored row.
func (r *MonthlyReportRepository) Upsert(ctx context.Context, report *models.MonthlyReport) (*models.MonthlyReport, error) {
	row := *report
	row.ID = 0
	row.EmailSentAt = nil
	if row.SubjectBreakdown == nil {
		row.SubjectBreakdown = models.SubjectBreakdown{}
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "staff_id"}, {Name: "month"}, {Name: "year"}},
		DoUpdates: clause.AssignmentColumns(recomputedColumns),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}

	return r.GetByKey(ctx, report.StaffID, report.Month, report.Year)
}

func (r *MonthlyReportRepository) GetByKey(ctx context.Context, staffID uint, month, year int) (*models.MonthlyReport, error) {
	var stored models.MonthlyReport
	err := r.db.WithContext(ctx).
		Where("staff_id = ? AND month = ? AND year = ?", staffID, month, year).
		First(&stored).Error
	if err != nil {
		return nil, translate(err)
	}
	return &stored, nil
}

func (r *MonthlyReportRepository) GetByID(ctx context.Context, id uint) (*models.MonthlyReport, error) {
	var report models.MonthlyReport
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, translate(err)
	}
	return &report, nil
}

// MarkEmailSent stamps every listed report in one statement.
func (r *MonthlyReportRepository) MarkEmailSent(ctx context.Context, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.MonthlyReport{}).
		Where("id IN ?", ids).
		Update("email_sent_at", at).Error
}

// ListByPeriod returns every stored report for a month, ordered by staff name.
func (r *MonthlyReportRepository) ListByPeriod(ctx context.Context, month, year int) ([]models.MonthlyReport, error) {
	var reports []models.MonthlyReport
	err := r.db.WithContext(ctx).
		Where("month = ? AND year = ?", month, year).
		Order("staff_name ASC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *MonthlyReportRepository) List(ctx context.Context, f MonthlyReportFilter) ([]models.MonthlyReport, int64, error) {
	page, pageSize := normalizePage(f.Page, f.PageSize)

	query := r.db.WithContext(ctx).Model(&models.MonthlyReport{})
	if f.Month != 0 {
		query = query.Where("month = ?", f.Month)
	}
	if f.Year != 0 {
		query = query.Where("year = ?", f.Year)
	}
	if f.StaffID != 0 {
		query = query.Where("staff_id = ?", f.StaffID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []models.MonthlyReport
	err := query.Order("year DESC, month DESC, staff_name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reports).Error
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}
