package models

import (
	"time"

	"gorm.io/gorm"
)

// Staff is a tutor or employee whose teaching hours are reported monthly.
type Staff struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:200;not null" json:"name"`
	Email     string         `gorm:"size:255;index" json:"email"`
	Phone     string         `gorm:"size:50" json:"phone"`
	Subjects  string         `gorm:"size:500" json:"subjects"` // comma separated, informational
	IsActive  bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Staff) TableName() string { return "staff" }
