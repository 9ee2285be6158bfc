package models

import (
	"time"

	"gorm.io/gorm"
)

// TeachingHour is a single logged unit of teaching time for one staff member on one date.
type TeachingHour struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StaffID     uint      `gorm:"index:idx_teaching_hours_staff_date;not null" json:"staff_id"`
	Date        time.Time `gorm:"index:idx_teaching_hours_staff_date;not null" json:"date"`
	Hours       float64   `gorm:"not null" json:"hours"`
	Subject     string    `gorm:"size:200;not null" json:"subject"`
	Course      *string   `gorm:"size:200" json:"course,omitempty"` // nil means no course
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (TeachingHour) TableName() string { return "teaching_hours" }

// BeforeSave stores dates in UTC so range queries compare like with like on every driver.
func (h *TeachingHour) BeforeSave(tx *gorm.DB) error {
	h.Date = h.Date.UTC()
	return nil
}
