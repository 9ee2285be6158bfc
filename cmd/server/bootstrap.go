package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/tuitionhub/backend/internal/config"
	"github.com/tuitionhub/backend/internal/models"
	"github.com/tuitionhub/backend/internal/repository"
	"github.com/tuitionhub/backend/internal/services"
	"github.com/tuitionhub/backend/internal/utils"
	"github.com/tuitionhub/backend/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services needed by the routes and by shutdown.
type appServices struct {
	cfg       *config.Config
	db        *gorm.DB
	registry  *prometheus.Registry
	metrics   services.Metrics
	taskQueue services.TaskQueue
	worker    *services.Worker
	scheduler *services.MonthlyReportScheduler
	logCron   *cron.Cron
	stop      chan struct{}

	authService      *services.AuthService
	staffService     *services.StaffService
	hourService      *services.TeachingHourService
	reportService    *services.MonthlyReportService
	configService    *services.SystemConfigService
	holidayService   *services.HolidayService
	systemLogService *services.SystemLogService
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	db := models.GetDB()

	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	services.InitSystemLogger(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(&cfg.Metrics, registry)

	sender, err := services.NewEmailSender(&cfg.Email)
	if err != nil {
		logger.Fatalf("Failed to configure email transport: %v", err)
	}

	staffRepo := repository.NewStaffRepository(db)
	hourRepo := repository.NewTeachingHourRepository(db)
	reportRepo := repository.NewMonthlyReportRepository(db)

	loc := cfg.Report.Location()
	configService := services.NewSystemConfigService(db)
	reportService := services.NewMonthlyReportService(staffRepo, hourRepo, reportRepo, configService, sender, metrics, &cfg.Report)

	// Task queue (uses Redis if enabled, otherwise sync mode)
	taskQueue := services.NewTaskQueue(cfg, reportService.ProcessReportTask)

	var worker *services.Worker
	if _, async := taskQueue.(*services.AsyncQueue); async {
		worker = services.NewWorker(&cfg.Redis, reportService.ProcessReportTask)
		if err := worker.Start(); err != nil {
			logger.Errorf("Failed to start async worker: %v", err)
			worker = nil
		}
	}

	holidayService := services.NewHolidayService()
	scheduler := services.NewMonthlyReportScheduler(reportService, configService, holidayService,
		repository.NewSchedulerLockRepository(db), loc)
	scheduler.StartScheduler()

	logCron := services.StartLogCleanupScheduler(db)

	authService := services.NewAuthService(db, &cfg.JWT)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := authService.CreateAdminIfNotExists(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		cfg:              cfg,
		db:               db,
		registry:         registry,
		metrics:          metrics,
		taskQueue:        taskQueue,
		worker:           worker,
		scheduler:        scheduler,
		logCron:          logCron,
		stop:             make(chan struct{}),
		authService:      authService,
		staffService:     services.NewStaffService(staffRepo),
		hourService:      services.NewTeachingHourService(hourRepo, staffRepo, loc),
		reportService:    reportService,
		configService:    configService,
		holidayService:   holidayService,
		systemLogService: services.NewSystemLogService(db),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	close(s.stop)
	s.scheduler.StopScheduler()
	<-s.logCron.Stop().Done()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
