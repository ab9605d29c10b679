// Package handler implements the HTTP handlers of the inventory API.
package handler

import (
	"errors"
	"net/http"

	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/infrastructure/lock"
	"github.com/cas-inventory/backend/internal/infrastructure/logger"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/cas-inventory/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
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

// Success sends a 200 response with the payload as body
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Error sends an error response, deriving the status code from the error code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	middleware.SetErrorCode(c, code)
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeInternal, message)
}

// HandleError converts an error returned by a ledger to an HTTP response
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	if domainErr, ok := shared.AsDomainError(err); ok {
		log := logger.GetGinLogger(c)
		if domainErr.Code == dto.ErrCodePersistence {
			log.Error("Ledger change not persisted", zap.Error(err))
		} else {
			log.Debug("Request rejected", zap.String("code", domainErr.Code), zap.String("reason", domainErr.Message))
		}
		middleware.SetErrorCode(c, domainErr.Code)
		c.JSON(dto.GetHTTPStatus(domainErr.Code), dto.NewDomainErrorResponse(domainErr, getRequestID(c)))
		return
	}

	if errors.Is(err, lock.ErrLockTimeout) {
		h.Error(c, dto.ErrCodeLockTimeout, "Another change to this record is in progress")
		return
	}

	logger.GetGinLogger(c).Error("Unexpected error", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}

// bindJSON decodes the request body and answers 400 or 413 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.handleBindError(c, err, "Invalid request body")
		return false
	}
	return true
}

// bindQuery decodes query parameters and answers 400 on failure
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		h.handleBindError(c, err, "Invalid query parameters")
		return false
	}
	return true
}

func (h *BaseHandler) handleBindError(c *gin.Context, err error, message string) {
	if middleware.IsValidationError(err) {
		middleware.SetErrorCode(c, dto.ErrCodeValidation)
		c.JSON(http.StatusBadRequest, middleware.FormatValidationErrors(err, getRequestID(c)))
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.Error(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
		return
	}
	h.BadRequest(c, message+": "+err.Error())
}

// parseID reads a UUID path parameter and answers 400 when it is malformed
func (h *BaseHandler) parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.Error(c, dto.ErrCodeValidation, "Invalid "+param+" format")
		return uuid.Nil, false
	}
	return id, true
}
