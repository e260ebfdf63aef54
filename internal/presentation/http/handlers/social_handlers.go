package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iyedjb/edutokudte-sub000/internal/application/session"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

// SocialHandlers serve the school directory and follow edges.
type SocialHandlers struct {
	logger *logging.ChanneledLogger
}

func NewSocialHandlers(logger *logging.ChanneledLogger) *SocialHandlers {
	return &SocialHandlers{logger: logger}
}

// GetUsers handles GET /api/v1/users
func (h *SocialHandlers) GetUsers(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	profiles := sess.Profiles()
	if profiles == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": session.ErrClosed.Error()})
		return
	}
	c.JSON(http.StatusOK, profiles.State())
}

// PostFollow handles POST /api/v1/users/:uid/follow
func (h *SocialHandlers) PostFollow(c *gin.Context) { h.follow(c, true) }

// DeleteFollow handles DELETE /api/v1/users/:uid/follow
func (h *SocialHandlers) DeleteFollow(c *gin.Context) { h.follow(c, false) }

func (h *SocialHandlers) follow(c *gin.Context, follow bool) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	profiles := sess.Profiles()
	if profiles == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": session.ErrClosed.Error()})
		return
	}
	target := c.Param("uid")
	if err := profiles.Follow(target, follow); err != nil {
		respondError(c, h.logger, logging.ChannelFeed, "follow", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"uid": target, "following": follow})
}
