package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// SubjectBreakdownEntry is the summed hours for one (subject, course) pair within a report.
type SubjectBreakdownEntry struct {
	Subject string  `json:"subject"`
	Course  *string `json:"course,omitempty"`
	Hours   float64 `json:"hours"`
}

// SubjectBreakdown is stored as a JSON text column.
type SubjectBreakdown []SubjectBreakdownEntry

func (b SubjectBreakdown) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (b *SubjectBreakdown) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*b = SubjectBreakdown{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("subject breakdown: unsupported column type")
	}
	if len(data) == 0 {
		*b = SubjectBreakdown{}
		return nil
	}
	return json.Unmarshal(data, b)
}

// MonthlyReport is one staff member's aggregated teaching hours for one calendar month.
// StaffName and StaffEmail are a snapshot taken at generation time.
type MonthlyReport struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	StaffID          uint             `gorm:"uniqueIndex:idx_monthly_report_key;not null" json:"staff_id"`
	Month            int              `gorm:"uniqueIndex:idx_monthly_report_key;not null" json:"month"`
	Year             int              `gorm:"uniqueIndex:idx_monthly_report_key;not null" json:"year"`
	StaffName        string           `gorm:"size:200" json:"staff_name"`
	StaffEmail       string           `gorm:"size:255" json:"staff_email"`
	TotalHours       float64          `json:"total_hours"`
	SubjectBreakdown SubjectBreakdown `gorm:"type:text" json:"subject_breakdown"`
	StartDate        time.Time        `json:"start_date"`
	EndDate          time.Time        `json:"end_date"`
	GeneratedAt      time.Time        `gorm:"index" json:"generated_at"`
	EmailSentAt      *time.Time       `json:"email_sent_at"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (MonthlyReport) TableName() string { return "monthly_reports" }
