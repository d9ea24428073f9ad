package handler

import (
	"errors"
	"net/http"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/logger"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/scheduler"
	"github.com/OsbanCerejo/inventoz-sub000/internal/interfaces/http/dto"
	"github.com/OsbanCerejo/inventoz-sub000/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := middleware.GetRequestID(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 response for work that continues in the background
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindJSON binds the body and writes the validation response on failure.
// It returns false when the handler should stop.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindQuery binds query parameters and writes the validation response on failure
func (h *BaseHandler) BindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// HandleError maps domain, scheduler and marketplace errors to HTTP responses.
// Anything unrecognized is logged and answered with a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.ErrorWithCode(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
		return
	}

	var remoteErr *integration.RemoteError
	switch {
	case errors.Is(err, scheduler.ErrCycleRunning):
		h.ErrorWithCode(c, dto.ErrCodeCycleRunning, "A sync cycle of this type is already running")
		return
	case errors.Is(err, scheduler.ErrInvalidWindow):
		h.ErrorWithCode(c, dto.ErrCodeInvalidWindow, err.Error())
		return
	case errors.Is(err, scheduler.ErrCoordinatorClosed):
		h.ErrorWithCode(c, dto.ErrCodeSyncUnavailable, "Sync coordinator is shutting down")
		return
	case errors.Is(err, integration.ErrCredentialUnavailable):
		h.ErrorWithCode(c, dto.ErrCodeCredentialUnavailable, "Marketplace credential unavailable")
		return
	case errors.As(err, &remoteErr):
		h.ErrorWithCode(c, dto.ErrCodeRemoteFailure, remoteErr.Error())
		return
	}

	logger.GetGinLogger(c).Error("Unhandled request error", zap.Error(err))
	_ = c.Error(err)
	h.InternalError(c, "An unexpected error occurred")
}

// bindLimit reads ?limit=, falling back to def when absent
func (h *BaseHandler) bindLimit(c *gin.Context, def int) (int, bool) {
	var q dto.LimitQuery
	if !h.BindQuery(c, &q) {
		return 0, false
	}
	if q.Limit == 0 {
		return def, true
	}
	return q.Limit, true
}
