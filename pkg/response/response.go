package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every API answer uses.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AppError carries an HTTP status and an application code up to the handler.
type AppError struct {
	HTTPStatus int
	Code       int
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(status int, msg string) *AppError {
	return &AppError{HTTPStatus: status, Code: status, Message: msg}
}

func NewBadRequest(msg string) *AppError   { return newAppError(http.StatusBadRequest, msg) }
func NewUnauthorized(msg string) *AppError { return newAppError(http.StatusUnauthorized, msg) }
func NewForbidden(msg string) *AppError    { return newAppError(http.StatusForbidden, msg) }
func NewNotFound(msg string) *AppError     { return newAppError(http.StatusNotFound, msg) }
func NewConflict(msg string) *AppError     { return newAppError(http.StatusConflict, msg) }
func NewServerError(msg string) *AppError  { return newAppError(http.StatusInternalServerError, msg) }

// Wrap attaches the underlying cause while keeping msg as the client-facing text.
func Wrap(e *AppError, err error) *AppError {
	out := *e
	out.Err = err
	return &out
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "created", Data: data})
}

// Accepted answers 202 for work handed to the background queue.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{Code: 0, Message: "accepted", Data: data})
}

// Error writes err. An *AppError anywhere in the chain sets status and code;
// anything else is a 500 with the error text.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, Response{Code: appErr.Code, Message: appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, Response{Code: 500, Message: err.Error()})
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Message: msg})
}

func BadRequest(c *gin.Context, msg string)      { abort(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string)    { abort(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string)       { abort(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)        { abort(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)        { abort(c, http.StatusConflict, msg) }
func TooManyRequests(c *gin.Context, msg string) { abort(c, http.StatusTooManyRequests, msg) }
func ServerError(c *gin.Context, msg string)     { abort(c, http.StatusInternalServerError, msg) }
