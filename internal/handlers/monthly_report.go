package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/tuitionhub/backend/internal/middleware"
	"github.com/tuitionhub/backend/internal/services"
	"github.com/tuitionhub/backend/pkg/logger"
	"github.com/tuitionhub/backend/pkg/response"
)

type MonthlyReportHandler struct {
	reportService *services.MonthlyReportService
	queue         services.TaskQueue
}

func NewMonthlyReportHandler(reportService *services.MonthlyReportService, queue services.TaskQueue) *MonthlyReportHandler {
	return &MonthlyReportHandler{reportService: reportService, queue: queue}
}

// GET /api/monthly-reports
func (h *MonthlyReportHandler) List(c *gin.Context) {
	var req services.ReportListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.reportService.List(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err, "failed to list reports")
		return
	}
	response.Success(c, resp)
}

// GET /api/monthly-reports/:id
func (h *MonthlyReportHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	report, err := h.reportService.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to load report")
		return
	}
	response.Success(c, report)
}

// GenerateRequest leaves month and year at zero to mean the previous month.
type GenerateRequest struct {
	Month   int  `json:"month" binding:"min=0,max=12"`
	Year    int  `json:"year" binding:"min=0"`
	StaffID uint `json:"staff_id"`
	Send    bool `json:"send"`
}

// Generate runs inline in sync mode and answers with the result; with Redis it
// enqueues and answers 202 with the request id.
// POST /api/monthly-reports/generate
func (h *MonthlyReportHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if h.queue != nil && h.queue.IsAsync() {
		month, year, err := h.reportService.ResolvePeriod(req.Month, req.Year)
		if err != nil {
			writeError(c, err, "Failed to generate reports")
			return
		}
		task := &services.ReportTask{
			RequestID:   logger.RequestID(c),
			Month:       month,
			Year:        year,
			StaffID:     req.StaffID,
			Send:        req.Send,
			RequestedBy: middleware.GetUsername(c),
		}
		if err := h.queue.Enqueue(task); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				response.Conflict(c, "a report run with this request id is already queued")
				return
			}
			writeError(c, err, "Failed to generate reports")
			return
		}
		response.Accepted(c, gin.H{"request_id": task.RequestID})
		return
	}

	opts := services.GenerateOptions{Month: req.Month, Year: req.Year, StaffID: req.StaffID}
	result, err := h.reportService.Run(c.Request.Context(), services.TriggerManual, opts, req.Send)
	if err != nil {
		writeError(c, err, "Failed to generate reports")
		return
	}
	response.Success(c, result)
}

type SendRequest struct {
	Month int `json:"month" binding:"required,min=1,max=12"`
	Year  int `json:"year" binding:"required,min=1"`
}

// Send mails the stored reports of a period to the admin again.
// POST /api/monthly-reports/send
func (h *MonthlyReportHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.reportService.ResendForPeriod(c.Request.Context(), req.Month, req.Year)
	if err != nil {
		writeError(c, err, "failed to send reports")
		return
	}
	if !result.Success && errors.Is(result.Err(), services.ErrAdminEmailNotConfigured) {
		writeError(c, result.Err(), "")
		return
	}
	response.Success(c, result)
}
