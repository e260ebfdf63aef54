package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/application/session"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/presentation/http/middleware"
)

// AuthHandlers contains session, role and QR login handlers
type AuthHandlers struct {
	sessions *session.Manager
	roles    *services.RoleService
	qr       *services.QRLoginService
	logger   *logging.ChanneledLogger
}

// NewAuthHandlers creates auth handlers with injected dependencies
func NewAuthHandlers(sessions *session.Manager, roles *services.RoleService, qr *services.QRLoginService, logger *logging.ChanneledLogger) *AuthHandlers {
	return &AuthHandlers{sessions: sessions, roles: roles, qr: qr, logger: logger}
}

// PostSession handles POST /api/v1/auth/session - opens the caller's session
// and starts warming the cache in the background
func (h *AuthHandlers) PostSession(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	start := time.Now()

	sess, created, err := h.sessions.Open(c.Request.Context(), identity)
	if err != nil {
		h.logger.LogAuthOperation("open_session", identity.UID, false, map[string]any{"error": err.Error()})
		respondError(c, h.logger, logging.ChannelAuth, "open_session", err)
		return
	}
	role, err := h.roles.Verify(c.Request.Context(), sess)
	if err != nil {
		respondError(c, h.logger, logging.ChannelAuth, "verify_role", err)
		return
	}

	h.logger.LogAuthOperation("open_session", identity.UID, true, map[string]any{
		"created":  created,
		"role":     role,
		"duration": time.Since(start),
	})
	c.JSON(http.StatusOK, gin.H{
		"uid":     identity.UID,
		"role":    role,
		"created": created,
		"warmed":  sess.Warmed(),
	})
}

// DeleteSession handles DELETE /api/v1/auth/session - logout
func (h *AuthHandlers) DeleteSession(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	closed := h.sessions.Close(identity.UID)
	h.logger.LogAuthOperation("close_session", identity.UID, true, map[string]any{"closed": closed})
	c.JSON(http.StatusOK, gin.H{"success": true, "closed": closed})
}

// GetRole handles GET /api/v1/auth/role - the verified role plus the
// advisory hint that was cached before verification
func (h *AuthHandlers) GetRole(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	hint, hasHint := sess.RoleHint()
	role, err := h.roles.Verify(c.Request.Context(), sess)
	if err != nil {
		respondError(c, h.logger, logging.ChannelAuth, "verify_role", err)
		return
	}
	body := gin.H{"uid": sess.UID(), "role": role}
	if hasHint {
		body["hint"] = hint
	}
	c.JSON(http.StatusOK, body)
}

// PostQR handles POST /api/v1/auth/qr - a display device asks for a QR session
func (h *AuthHandlers) PostQR(c *gin.Context) {
	ticket, err := h.qr.Create(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, logging.ChannelAuth, "create_qr", err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// GetQR handles GET /api/v1/auth/qr/:id
func (h *AuthHandlers) GetQR(c *gin.Context) {
	view, err := h.qr.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, logging.ChannelAuth, "qr_status", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PostQRApprove handles POST /api/v1/auth/qr/:id/approve - a logged-in phone
// approves the session shown on the display
func (h *AuthHandlers) PostQRApprove(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	view, err := h.qr.Approve(c.Request.Context(), c.Param("id"), identity)
	h.logger.LogAuthOperation("qr_approve", identity.UID, err == nil, map[string]any{"sessionId": c.Param("id")})
	if err != nil {
		respondError(c, h.logger, logging.ChannelAuth, "qr_approve", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PostQRRedeem handles POST /api/v1/auth/qr/:id/redeem - the display trades
// its secret for the access token
func (h *AuthHandlers) PostQRRedeem(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret is required"})
		return
	}
	token, err := h.qr.Redeem(c.Request.Context(), c.Param("id"), req.Secret)
	// the redeeming display has no user yet
	h.logger.LogAuthOperation("qr_redeem", "", err == nil, map[string]any{"sessionId": c.Param("id")})
	if err != nil {
		respondError(c, h.logger, logging.ChannelAuth, "qr_redeem", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
