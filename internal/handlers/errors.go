package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tuitionhub/backend/internal/repository"
	"github.com/tuitionhub/backend/internal/services"
	"github.com/tuitionhub/backend/pkg/logger"
	"github.com/tuitionhub/backend/pkg/response"
)

// toAppError maps service sentinels to HTTP statuses. Unknown errors become a
// 500 carrying fallback, with the cause kept for logging.
func toAppError(err error, fallback string) *response.AppError {
	switch {
	case errors.Is(err, services.ErrInvalidPeriod),
		errors.Is(err, services.ErrInvalidTeachingHour),
		errors.Is(err, services.ErrInvalidReportTime):
		return response.Wrap(response.NewBadRequest(err.Error()), err)
	case errors.Is(err, services.ErrAdminEmailNotConfigured):
		return response.Wrap(response.NewBadRequest("Admin email not configured"), err)
	case errors.Is(err, services.ErrStaffNotFound),
		errors.Is(err, services.ErrNoReports),
		errors.Is(err, repository.ErrNotFound):
		return response.Wrap(response.NewNotFound(err.Error()), err)
	case errors.Is(err, services.ErrForbidden):
		return response.Wrap(response.NewForbidden(err.Error()), err)
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUserDisabled):
		return response.Wrap(response.NewUnauthorized(err.Error()), err)
	case errors.Is(err, services.ErrUsernameTaken):
		return response.Wrap(response.NewConflict(err.Error()), err)
	}
	return response.Wrap(response.NewServerError(fallback), err)
}

func writeError(c *gin.Context, err error, fallback string) {
	appErr := toAppError(err, fallback)
	if appErr.HTTPStatus >= 500 {
		logger.Error().Err(err).Str("request_id", logger.RequestID(c)).Str("path", c.Request.URL.Path).Msg(fallback)
	}
	response.Error(c, appErr)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}
