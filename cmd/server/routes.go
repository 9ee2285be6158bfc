package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tuitionhub/backend/internal/handlers"
	"github.com/tuitionhub/backend/internal/middleware"
	"github.com/tuitionhub/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger("/health", svc.cfg.Metrics.Path), logger.GinRecovery())
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics(svc.metrics))

	// Rate limiter for report generation
	generateLimiter := middleware.NewRateLimiter(0.2, 3)
	generateLimiter.StartPruning(10*time.Minute, svc.stop)

	r.GET("/health", handlers.NewHealthHandler(svc.db, svc.taskQueue).CheckHealth)
	if svc.cfg.Metrics.Enabled {
		r.GET(svc.cfg.Metrics.Path, handlers.Metrics(svc.registry))
	}

	authHandler := handlers.NewAuthHandler(svc.authService)
	staffHandler := handlers.NewStaffHandler(svc.staffService, svc.authService)
	hourHandler := handlers.NewTeachingHourHandler(svc.hourService, svc.authService)
	reportHandler := handlers.NewMonthlyReportHandler(svc.reportService, svc.taskQueue)
	configHandler := handlers.NewSystemConfigHandler(svc.configService, svc.holidayService, svc.scheduler)
	systemLogHandler := handlers.NewSystemLogHandler(svc.systemLogService)

	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/auth/login", authHandler.Login)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", authHandler.GetCurrentUser)
			protected.PUT("/auth/password", authHandler.ChangePassword)

			// Staff log their own hours; admins may log for anyone
			protected.POST("/teaching-hours", hourHandler.Create)
			protected.GET("/teaching-hours", hourHandler.List)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			// Staff
			admin.GET("/staff", staffHandler.List)
			admin.POST("/staff", staffHandler.Create)
			admin.GET("/staff/:id", staffHandler.Get)
			admin.PUT("/staff/:id", staffHandler.Update)
			admin.DELETE("/staff/:id", staffHandler.Delete)

			admin.DELETE("/teaching-hours/:id", hourHandler.Delete)

			// Monthly reports
			admin.GET("/monthly-reports", reportHandler.List)
			admin.GET("/monthly-reports/:id", reportHandler.Get)
			admin.POST("/monthly-reports/generate", generateLimiter.Middleware(), reportHandler.Generate)
			admin.POST("/monthly-reports/send", reportHandler.Send)

			// System config
			admin.GET("/system-config/email", configHandler.GetEmailSettings)
			admin.PUT("/system-config/email", configHandler.UpdateEmailSettings)
			admin.GET("/system-config/monthly-report", configHandler.GetMonthlyReportConfig)
			admin.PUT("/system-config/monthly-report", configHandler.UpdateMonthlyReportConfig)
			admin.GET("/system-config/holiday-countries", configHandler.GetHolidayCountries)

			// System logs
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)
		}
	}
}
