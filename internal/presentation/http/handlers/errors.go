// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/application/session"
	"github.com/iyedjb/edutokudte-sub000/internal/application/views"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/ai"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/presentation/http/middleware"
)

// statusFor maps service sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, edu.ErrValidation), errors.Is(err, edu.ErrNoPoll), errors.Is(err, edu.ErrInvalidVote),
		errors.Is(err, realtime.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrQRSecretMismatch), errors.Is(err, session.ErrClosed):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound), errors.Is(err, realtime.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrFollowUnchanged), errors.Is(err, edu.ErrAlreadyVoted),
		errors.Is(err, services.ErrQRInvalidTransition), errors.Is(err, views.ErrLoadInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrQRExpired):
		return http.StatusGone
	case errors.Is(err, services.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, ai.ErrEmptyResponse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...}. Internal errors are logged and not
// echoed to the client.
func respondError(c *gin.Context, cl *logging.ChanneledLogger, channel logging.Channel, operation string, err error) {
	logger := cl.WithContext(channel, c.Request.Context())
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error("Request failed", "operation", operation, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	logger.Debug("Request rejected", "operation", operation, "status", status, "error", err)
	c.JSON(status, gin.H{"error": err.Error()})
}

// mustSession returns the session RequireSession stored, or writes 401.
func mustSession(c *gin.Context) (*session.Session, bool) {
	sess, ok := middleware.GetSession(c)
	if !ok || sess.Closed() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not open"})
		return nil, false
	}
	return sess, true
}
