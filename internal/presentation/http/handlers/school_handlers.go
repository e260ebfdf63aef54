package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/application/session"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

// SchoolHandlers serve grades, conversations, notifications and the
// reference catalog.
type SchoolHandlers struct {
	roles         *services.RoleService
	grades        *services.GradeService
	notifications *services.NotificationService
	logger        *logging.ChanneledLogger
}

func NewSchoolHandlers(roles *services.RoleService, grades *services.GradeService, notifications *services.NotificationService, logger *logging.ChanneledLogger) *SchoolHandlers {
	return &SchoolHandlers{roles: roles, grades: grades, notifications: notifications, logger: logger}
}

func closedSession(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": session.ErrClosed.Error()})
}

// GetGrades handles GET /api/v1/grades - the caller's report card
func (h *SchoolHandlers) GetGrades(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	grades := sess.Grades()
	if grades == nil {
		closedSession(c)
		return
	}
	c.JSON(http.StatusOK, grades.Summary())
}

// PostGrade handles POST /api/v1/grades. The role is verified against the
// stored profile, never taken from the cached hint.
func (h *SchoolHandlers) PostGrade(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	var g edu.Grade
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	ctx := c.Request.Context()
	role, err := h.roles.Verify(ctx, sess)
	if err != nil {
		respondError(c, h.logger, logging.ChannelAuth, "verify_role", err)
		return
	}
	saved, err := h.grades.Add(ctx, role, sess.UID(), g)
	if err != nil {
		respondError(c, h.logger, logging.ChannelSystem, "add_grade", err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// GetConversations handles GET /api/v1/conversations
func (h *SchoolHandlers) GetConversations(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	conversations := sess.Conversations()
	if conversations == nil {
		closedSession(c)
		return
	}
	c.JSON(http.StatusOK, conversations.State())
}

// PostConversation handles POST /api/v1/conversations - a new request
func (h *SchoolHandlers) PostConversation(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	var req struct {
		To      string `json:"to" binding:"required"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to is required"})
		return
	}
	conversations := sess.Conversations()
	if conversations == nil {
		closedSession(c)
		return
	}
	conv, err := conversations.Request(req.To, req.Message)
	if err != nil {
		respondError(c, h.logger, logging.ChannelMessaging, "request_conversation", err)
		return
	}
	c.JSON(http.StatusAccepted, conv)
}

// PostConversationApprove handles POST /api/v1/conversations/:id/approve
func (h *SchoolHandlers) PostConversationApprove(c *gin.Context) { h.decide(c, true) }

// PostConversationReject handles POST /api/v1/conversations/:id/reject
func (h *SchoolHandlers) PostConversationReject(c *gin.Context) { h.decide(c, false) }

func (h *SchoolHandlers) decide(c *gin.Context, approve bool) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	conversations := sess.Conversations()
	if conversations == nil {
		closedSession(c)
		return
	}
	conv, err := conversations.Decide(c.Param("id"), approve)
	if err != nil {
		respondError(c, h.logger, logging.ChannelMessaging, "decide_conversation", err)
		return
	}
	c.JSON(http.StatusAccepted, conv)
}

// PostNotification handles POST /api/v1/notifications - secretariat only
func (h *SchoolHandlers) PostNotification(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	var req services.NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	ctx := c.Request.Context()
	role, err := h.roles.Verify(ctx, sess)
	if err != nil {
		respondError(c, h.logger, logging.ChannelAuth, "verify_role", err)
		return
	}
	sent, err := h.notifications.Send(ctx, role, sess.Author(), req)
	if err != nil {
		respondError(c, h.logger, logging.ChannelSystem, "send_notification", err)
		return
	}
	c.JSON(http.StatusCreated, sent)
}

// GetNotifications handles GET /api/v1/notifications
func (h *SchoolHandlers) GetNotifications(c *gin.Context) {
	list, err := h.notifications.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, logging.ChannelSystem, "list_notifications", err)
		return
	}
	if list == nil {
		list = []edu.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// GetVideos handles GET /api/v1/videos
func (h *SchoolHandlers) GetVideos(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	if v := sess.Videos(); v != nil {
		c.JSON(http.StatusOK, v.State())
		return
	}
	closedSession(c)
}

// GetClasses handles GET /api/v1/classes - classes the caller belongs to
func (h *SchoolHandlers) GetClasses(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	if v := sess.Classes(); v != nil {
		c.JSON(http.StatusOK, v.State())
		return
	}
	closedSession(c)
}

// GetEvents handles GET /api/v1/events
func (h *SchoolHandlers) GetEvents(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	if v := sess.Events(); v != nil {
		c.JSON(http.StatusOK, v.State())
		return
	}
	closedSession(c)
}
