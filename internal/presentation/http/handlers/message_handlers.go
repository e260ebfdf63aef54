package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

// MessageHandlers serve chat rooms.
type MessageHandlers struct {
	messages *services.MessageService
	logger   *logging.ChanneledLogger
}

func NewMessageHandlers(messages *services.MessageService, logger *logging.ChanneledLogger) *MessageHandlers {
	return &MessageHandlers{messages: messages, logger: logger}
}

// GetRooms handles GET /api/v1/rooms
func (h *MessageHandlers) GetRooms(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	rooms, err := h.messages.Rooms(c.Request.Context(), sess.UID())
	if err != nil {
		respondError(c, h.logger, logging.ChannelMessaging, "list_rooms", err)
		return
	}
	if rooms == nil {
		rooms = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetMessages handles GET /api/v1/messages/:room
func (h *MessageHandlers) GetMessages(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	view, err := sess.Messages(c.Request.Context(), c.Param("room"))
	if err != nil {
		respondError(c, h.logger, logging.ChannelMessaging, "open_room", err)
		return
	}
	c.JSON(http.StatusOK, view.State())
}

// PostMessage handles POST /api/v1/messages/:room. attachment is an image
// data URL.
func (h *MessageHandlers) PostMessage(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	var req struct {
		Text       string `json:"text"`
		Attachment string `json:"attachment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	view, err := sess.Messages(c.Request.Context(), c.Param("room"))
	if err != nil {
		respondError(c, h.logger, logging.ChannelMessaging, "open_room", err)
		return
	}
	msg, err := view.Send(edu.NewMessageInput{Text: req.Text}, req.Attachment)
	if err != nil {
		respondError(c, h.logger, logging.ChannelMessaging, "send_message", err)
		return
	}
	c.JSON(http.StatusAccepted, msg)
}
