package models

import (
	"fmt"

	"github.com/tuitionhub/backend/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	db, err := Open(cfg, logger.Warn)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to the configured database without touching the package-level handle.
func Open(cfg *config.DatabaseConfig, level logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(level),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func AutoMigrate() error {
	return Migrate(DB)
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Staff{},
		&TeachingHour{},
		&MonthlyReport{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// DefaultSystemConfigs are inserted on first start; existing keys are never overwritten.
var DefaultSystemConfigs = []SystemConfig{
	{Key: "email_from", Value: "", Type: "string", Group: "email", Label: "Sender Address"},
	{Key: "monthly_report_admin_email", Value: "", Type: "string", Group: "email", Label: "Monthly Report Recipient"},
	{Key: "monthly_report_enabled", Value: "false", Type: "bool", Group: "monthly_report", Label: "Enable Scheduled Monthly Report"},
	{Key: "monthly_report_time", Value: "08:00", Type: "string", Group: "monthly_report", Label: "Monthly Report Time (HH:MM)"},
	{Key: "monthly_report_holiday_country", Value: "", Type: "string", Group: "monthly_report", Label: "Holiday Calendar For Report Day"},
	{Key: "monthly_report_auto_send", Value: "true", Type: "bool", Group: "monthly_report", Label: "Email Summary After Scheduled Run"},
	{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
}

// SeedDefaultData creates default data if not exists
func SeedDefaultData() error {
	return Seed(DB)
}

func Seed(db *gorm.DB) error {
	for _, cfg := range DefaultSystemConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where(&SystemConfig{Key: cfg.Key}).Count(&count)
		if count == 0 {
			cfg := cfg
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
