package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tuitionhub/backend/internal/models"
	"gorm.io/gorm"
)

const (
	ConfigEmailFrom                   = "email_from"
	ConfigMonthlyReportAdminEmail     = "monthly_report_admin_email"
	ConfigMonthlyReportEnabled        = "monthly_report_enabled"
	ConfigMonthlyReportTime           = "monthly_report_time"
	ConfigMonthlyReportHolidayCountry = "monthly_report_holiday_country"
	ConfigMonthlyReportAutoSend       = "monthly_report_auto_send"
	ConfigLogRetentionDays            = "log_retention_days"

	defaultMonthlyReportTime = "08:00"
)

var ErrInvalidReportTime = errors.New("report time must be HH:MM")

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(ctx context.Context, key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.WithContext(ctx).Where(&models.SystemConfig{Key: key}).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(s.GetWithDefault(ctx, key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	value, err := strconv.Atoi(s.GetWithDefault(ctx, key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

// Set updates the value of an existing key or creates it as a string setting.
func (s *SystemConfigService) Set(ctx context.Context, key, value string) error {
	db := s.db.WithContext(ctx)

	var cfg models.SystemConfig
	err := db.Where(&models.SystemConfig{Key: key}).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.SystemConfig{
			Key:   key,
			Value: value,
			Type:  "string",
		}
		return db.Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return db.Model(&cfg).Update("value", value).Error
}

func (s *SystemConfigService) GetByGroup(ctx context.Context, group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.WithContext(ctx).Where(&models.SystemConfig{Group: group}).Order("id ASC").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// EmailSettings are the sender and recipient of the consolidated monthly report.
type EmailSettings struct {
	FromEmail  string `json:"from_email"`
	AdminEmail string `json:"admin_email"`
}

// GetEmailSettings reads both addresses. A missing row reads as empty.
func (s *SystemConfigService) GetEmailSettings(ctx context.Context) (*EmailSettings, error) {
	var configs []models.SystemConfig
	err := s.db.WithContext(ctx).
		Where(map[string]interface{}{"key": []string{ConfigEmailFrom, ConfigMonthlyReportAdminEmail}}).
		Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("read email settings: %w", err)
	}

	settings := &EmailSettings{}
	for _, c := range configs {
		switch c.Key {
		case ConfigEmailFrom:
			settings.FromEmail = strings.TrimSpace(c.Value)
		case ConfigMonthlyReportAdminEmail:
			settings.AdminEmail = strings.TrimSpace(c.Value)
		}
	}
	return settings, nil
}

type UpdateEmailSettingsRequest struct {
	FromEmail  *string `json:"from_email"`
	AdminEmail *string `json:"admin_email"`
}

func (s *SystemConfigService) UpdateEmailSettings(ctx context.Context, req *UpdateEmailSettingsRequest) error {
	if req.FromEmail != nil {
		if err := s.Set(ctx, ConfigEmailFrom, strings.TrimSpace(*req.FromEmail)); err != nil {
			return err
		}
	}
	if req.AdminEmail != nil {
		if err := s.Set(ctx, ConfigMonthlyReportAdminEmail, strings.TrimSpace(*req.AdminEmail)); err != nil {
			return err
		}
	}
	return nil
}

type MonthlyReportConfig struct {
	Enabled        bool   `json:"enabled"`
	Time           string `json:"time"`
	HolidayCountry string `json:"holiday_country"`
	AutoSend       bool   `json:"auto_send"`
}

func (s *SystemConfigService) GetMonthlyReportConfig(ctx context.Context) *MonthlyReportConfig {
	reportTime := s.GetWithDefault(ctx, ConfigMonthlyReportTime, defaultMonthlyReportTime)
	if _, _, err := parseReportTime(reportTime); err != nil {
		reportTime = defaultMonthlyReportTime
	}
	return &MonthlyReportConfig{
		Enabled:        s.GetBool(ctx, ConfigMonthlyReportEnabled, false),
		Time:           reportTime,
		HolidayCountry: s.GetWithDefault(ctx, ConfigMonthlyReportHolidayCountry, ""),
		AutoSend:       s.GetBool(ctx, ConfigMonthlyReportAutoSend, true),
	}
}

type UpdateMonthlyReportConfigRequest struct {
	Enabled        *bool   `json:"enabled"`
	Time           *string `json:"time"`
	HolidayCountry *string `json:"holiday_country"`
	AutoSend       *bool   `json:"auto_send"`
}

func (s *SystemConfigService) UpdateMonthlyReportConfig(ctx context.Context, req *UpdateMonthlyReportConfigRequest) error {
	if req.Time != nil {
		if _, _, err := parseReportTime(*req.Time); err != nil {
			return err
		}
	}

	if req.Enabled != nil {
		if err := s.Set(ctx, ConfigMonthlyReportEnabled, strconv.FormatBool(*req.Enabled)); err != nil {
			return err
		}
	}
	if req.Time != nil {
		if err := s.Set(ctx, ConfigMonthlyReportTime, strings.TrimSpace(*req.Time)); err != nil {
			return err
		}
	}
	if req.HolidayCountry != nil {
		if err := s.Set(ctx, ConfigMonthlyReportHolidayCountry, strings.ToUpper(strings.TrimSpace(*req.HolidayCountry))); err != nil {
			return err
		}
	}
	if req.AutoSend != nil {
		if err := s.Set(ctx, ConfigMonthlyReportAutoSend, strconv.FormatBool(*req.AutoSend)); err != nil {
			return err
		}
	}
	return nil
}

// parseReportTime accepts "H:MM" or "HH:MM" in 24h form.
func parseReportTime(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, ErrInvalidReportTime
	}
	return t.Hour(), t.Minute(), nil
}
