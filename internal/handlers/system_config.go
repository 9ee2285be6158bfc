package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/tuitionhub/backend/internal/services"
	"github.com/tuitionhub/backend/pkg/response"
)

// ScheduleUpdater is notified after the report time changes.
type ScheduleUpdater interface {
	UpdateSchedule()
}

type SystemConfigHandler struct {
	configService *services.SystemConfigService
	holidays      *services.HolidayService
	scheduler     ScheduleUpdater
}

func NewSystemConfigHandler(configService *services.SystemConfigService, holidays *services.HolidayService, scheduler ScheduleUpdater) *SystemConfigHandler {
	return &SystemConfigHandler{configService: configService, holidays: holidays, scheduler: scheduler}
}

// GET /api/system-config/email
func (h *SystemConfigHandler) GetEmailSettings(c *gin.Context) {
	settings, err := h.configService.GetEmailSettings(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to read email settings")
		return
	}
	response.Success(c, settings)
}

// PUT /api/system-config/email
func (h *SystemConfigHandler) UpdateEmailSettings(c *gin.Context) {
	var req services.UpdateEmailSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.configService.UpdateEmailSettings(ctx, &req); err != nil {
		writeError(c, err, "failed to update email settings")
		return
	}

	settings, err := h.configService.GetEmailSettings(ctx)
	if err != nil {
		writeError(c, err, "failed to read email settings")
		return
	}
	response.Success(c, settings)
}

// GET /api/system-config/monthly-report
func (h *SystemConfigHandler) GetMonthlyReportConfig(c *gin.Context) {
	response.Success(c, h.configService.GetMonthlyReportConfig(c.Request.Context()))
}

// PUT /api/system-config/monthly-report
func (h *SystemConfigHandler) UpdateMonthlyReportConfig(c *gin.Context) {
	var req services.UpdateMonthlyReportConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.configService.UpdateMonthlyReportConfig(ctx, &req); err != nil {
		writeError(c, err, "failed to update monthly report settings")
		return
	}
	if h.scheduler != nil {
		h.scheduler.UpdateSchedule()
	}
	response.Success(c, h.configService.GetMonthlyReportConfig(ctx))
}

// GET /api/system-config/holiday-countries
func (h *SystemConfigHandler) GetHolidayCountries(c *gin.Context) {
	response.Success(c, h.holidays.GetSupportedCountries())
}
