// Package middleware provides HTTP middleware for the AgriTrace API.
//
// Import Path: agritrace.io/agritrace/internal/api/middleware
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "agritrace.io/agritrace/internal/pkg/errors"
	"agritrace.io/agritrace/internal/pkg/logger"
)

// ErrorHandler is a Gin middleware that provides centralized error handling.
// It captures errors added via c.Error() and returns a consistent JSON response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		if appErr, ok := apperrors.IsAppError(err); ok {
			logger.Warn("Request error",
				zap.String("code", appErr.Code),
				zap.String("message", appErr.Message),
				zap.Int("status", appErr.HTTPStatus),
				zap.String("request_id", GetRequestID(c.Request.Context())),
				zap.Error(appErr.Err),
			)
			c.JSON(appErr.HTTPStatus, errorBody(c, appErr))
			return
		}

		// Fallback: generic 500 error
		logger.Error("Unhandled request error",
			zap.String("request_id", GetRequestID(c.Request.Context())),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, errorBody(c,
			apperrors.Internal(apperrors.CodeInternal, "An internal error occurred")))
	}
}

// AbortWithError stops the chain and writes appErr in the standard shape.
func AbortWithError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, errorBody(c, appErr))
}

func errorBody(c *gin.Context, appErr *apperrors.AppError) gin.H {
	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if rid := GetRequestID(c.Request.Context()); rid != "" {
		body["request_id"] = rid
	}
	if len(appErr.Params) > 0 {
		body["params"] = appErr.Params
	}
	return body
}
