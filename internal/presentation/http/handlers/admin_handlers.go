package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/application/session"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

// AdminHandlers expose runtime controls to verified admins.
type AdminHandlers struct {
	roles    *services.RoleService
	sessions *session.Manager
	logger   *logging.ChanneledLogger
}

func NewAdminHandlers(roles *services.RoleService, sessions *session.Manager, logger *logging.ChanneledLogger) *AdminHandlers {
	return &AdminHandlers{roles: roles, sessions: sessions, logger: logger}
}

// RequireAdmin aborts with 403 unless the caller's stored role is admin.
func (h *AdminHandlers) RequireAdmin(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		c.Abort()
		return
	}
	role, err := h.roles.Verify(c.Request.Context(), sess)
	if err != nil {
		respondError(c, h.logger, logging.ChannelAuth, "verify_role", err)
		c.Abort()
		return
	}
	if role != edu.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": services.ErrForbidden.Error()})
		return
	}
	c.Next()
}

// GetLogLevels handles GET /api/v1/admin/log-levels
func (h *AdminHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

// PostLogLevel handles POST /api/v1/admin/log-levels
func (h *AdminHandlers) PostLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	var level slog.Level
	switch strings.ToUpper(req.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log level specified"})
		return
	}

	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to set log level", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": fmt.Sprintf("Log level for channel '%s' set to '%s'", req.Channel, req.Level)})
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandlers) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.sessions.Count()})
}
