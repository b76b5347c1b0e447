package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with an explicit status and kind
func (h *BaseHandler) Error(c *gin.Context, statusCode int, kind, message string) {
	resp := dto.NewErrorResponse(kind, message)
	resp.Error.RequestID = middleware.GetRequestID(c)
	c.Set(middleware.ErrorKindKey, kind)
	c.JSON(statusCode, resp)
}

// BadBinding answers a request whose body or query could not be bound
func (h *BaseHandler) BadBinding(c *gin.Context, err error) {
	h.HandleError(c, middleware.BindingError(err))
}

// HandleError converts any error into the kind-tagged error envelope.
// Server side failures are logged with their cause; the body never carries it.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	info, status := dto.ErrorFromDomain(err)
	info.RequestID = middleware.GetRequestID(c)

	if status >= http.StatusInternalServerError {
		logger.L(c.Request.Context()).Error("Request failed",
			zap.String("kind", info.Kind),
			zap.Error(err),
		)
	}
	if shared.IsRetryable(err) {
		c.Header("Retry-After", "1")
	}

	_ = c.Error(err)
	c.Set(middleware.ErrorKindKey, info.Kind)
	c.JSON(status, dto.NewErrorResponseFromInfo(info))
}
