package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/tuitionhub/backend/internal/middleware"
	"github.com/tuitionhub/backend/internal/models"
	"github.com/tuitionhub/backend/internal/services"
	"github.com/tuitionhub/backend/pkg/logger"
	"github.com/tuitionhub/backend/pkg/response"
)

type StaffHandler struct {
	staffService *services.StaffService
	authService  *services.AuthService
}

func NewStaffHandler(staffService *services.StaffService, authService *services.AuthService) *StaffHandler {
	return &StaffHandler{staffService: staffService, authService: authService}
}

// GET /api/staff
func (h *StaffHandler) List(c *gin.Context) {
	var req services.StaffListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.staffService.List(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err, "failed to list staff")
		return
	}
	response.Success(c, resp)
}

// GET /api/staff/:id
func (h *StaffHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	staff, err := h.staffService.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to load staff")
		return
	}
	response.Success(c, staff)
}

type staffCreated struct {
	*models.Staff
	User *models.User `json:"user,omitempty"`
}

// Create adds a staff member and, when a username is given, their login.
// POST /api/staff
func (h *StaffHandler) Create(c *gin.Context) {
	var req services.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Username != "" && req.Password == "" {
		response.BadRequest(c, "password is required when username is set")
		return
	}

	ctx := c.Request.Context()
	staff, err := h.staffService.Create(ctx, &req)
	if err != nil {
		writeError(c, err, "failed to create staff")
		return
	}

	out := staffCreated{Staff: staff}
	if req.Username != "" {
		user, err := h.authService.CreateStaffUser(ctx, staff.ID, req.Username, req.Password, staff.Email, staff.Name)
		if err != nil {
			if delErr := h.staffService.Delete(ctx, staff.ID); delErr != nil {
				logger.Warnf("[Staff] Failed to roll back staff %d after login error: %v", staff.ID, delErr)
			}
			writeError(c, err, "failed to create staff login")
			return
		}
		out.User = user
	}

	uid := middleware.GetUserID(c)
	services.LogInfo("Staff", "create", fmt.Sprintf("Created staff %d (%s)", staff.ID, staff.Name), &uid, c.ClientIP(), nil)
	response.Created(c, out)
}

// PUT /api/staff/:id
func (h *StaffHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req services.UpdateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	staff, err := h.staffService.Update(c.Request.Context(), id, &req)
	if err != nil {
		writeError(c, err, "failed to update staff")
		return
	}
	response.Success(c, staff)
}

// DELETE /api/staff/:id
func (h *StaffHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.staffService.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, "failed to delete staff")
		return
	}
	response.Success(c, nil)
}
