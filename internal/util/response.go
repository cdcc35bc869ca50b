package util

import (
	"errors"
	"net/http"
	"sia_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	InternalServerError(c)
}

var statusBySentinel = []struct {
	err  error
	code int
}{
	{ErrActivityNotFound, http.StatusNotFound},
	{ErrActivityItemNotFound, http.StatusNotFound},
	{ErrNoPendingItem, http.StatusNotFound},
	{ErrProfileNotFound, http.StatusNotFound},
	{ErrUserNotFound, http.StatusNotFound},
	{ErrItemTerminated, http.StatusBadRequest},
	{ErrActivityCompleted, http.StatusBadRequest},
	{ErrInvalidAnswer, http.StatusBadRequest},
	{ErrInvalidRecording, http.StatusBadRequest},
	{ErrPermissionDenied, http.StatusForbidden},
	{ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrEmailRegistered, http.StatusConflict},
	{ErrGenerationLimit, http.StatusTooManyRequests},
}

// StatusFor maps a service error onto an HTTP status code. Upstream and
// storage failures, and anything unknown, are 500.
func StatusFor(err error) int {
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return http.StatusInternalServerError
}

// HandleError writes the error response for err. Client errors carry the
// sentinel message; server errors are logged and hidden.
func HandleError(c *gin.Context, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		LogInternalError(c, err)
		return
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			Error(c, code, s.err.Error())
			return
		}
	}
}
