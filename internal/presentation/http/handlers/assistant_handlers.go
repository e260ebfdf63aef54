package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/ai"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

// AssistantHandlers proxy the study assistant.
type AssistantHandlers struct {
	assistant *services.AssistantService
	logger    *logging.ChanneledLogger
}

func NewAssistantHandlers(assistant *services.AssistantService, logger *logging.ChanneledLogger) *AssistantHandlers {
	return &AssistantHandlers{assistant: assistant, logger: logger}
}

// PostChat handles POST /api/v1/assistant/chat
func (h *AssistantHandlers) PostChat(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	var req struct {
		Messages []ai.Message `json:"messages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	reply, err := h.assistant.Chat(c.Request.Context(), sess.UID(), req.Messages)
	if err != nil {
		h.upstreamError(c, "assistant_chat", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// PostModerate handles POST /api/v1/moderation
func (h *AssistantHandlers) PostModerate(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	verdict, err := h.assistant.Moderate(c.Request.Context(), req.Text)
	if err != nil {
		h.upstreamError(c, "assistant_moderate", err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

// upstreamError reports provider failures as 502 rather than 500.
func (h *AssistantHandlers) upstreamError(c *gin.Context, operation string, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Assistant().Error("Assistant request failed", "operation", operation, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant unavailable"})
		return
	}
	respondError(c, h.logger, logging.ChannelAssistant, operation, err)
}
