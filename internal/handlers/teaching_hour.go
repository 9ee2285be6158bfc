package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/tuitionhub/backend/internal/middleware"
	"github.com/tuitionhub/backend/internal/models"
	"github.com/tuitionhub/backend/internal/services"
	"github.com/tuitionhub/backend/pkg/response"
)

type TeachingHourHandler struct {
	hourService *services.TeachingHourService
	authService *services.AuthService
}

func NewTeachingHourHandler(hourService *services.TeachingHourService, authService *services.AuthService) *TeachingHourHandler {
	return &TeachingHourHandler{hourService: hourService, authService: authService}
}

// actor resolves the caller. Staff users carry their staff id from the user record.
func (h *TeachingHourHandler) actor(c *gin.Context) (services.Actor, bool) {
	actor := services.Actor{UserID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
	if actor.Role == models.RoleAdmin {
		return actor, true
	}

	user, err := h.authService.GetUserByID(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Unauthorized(c, "user not found")
		return actor, false
	}
	if !user.IsActive {
		response.Unauthorized(c, services.ErrUserDisabled.Error())
		return actor, false
	}
	actor.StaffID = user.StaffID
	return actor, true
}

// POST /api/teaching-hours
func (h *TeachingHourHandler) Create(c *gin.Context) {
	var req services.CreateTeachingHourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	hour, err := h.hourService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		writeError(c, err, "failed to log teaching hours")
		return
	}
	response.Created(c, hour)
}

// GET /api/teaching-hours
func (h *TeachingHourHandler) List(c *gin.Context) {
	var req services.TeachingHourListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	resp, err := h.hourService.List(c.Request.Context(), actor, &req)
	if err != nil {
		writeError(c, err, "failed to list teaching hours")
		return
	}
	response.Success(c, resp)
}

// DELETE /api/teaching-hours/:id
func (h *TeachingHourHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.hourService.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, "failed to delete teaching hours")
		return
	}
	response.Success(c, nil)
}
