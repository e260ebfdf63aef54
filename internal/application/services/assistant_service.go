package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/ai"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

const (
	maxAssistantTurns   = 40
	maxAssistantMessage = 4000
	maxModerationText   = 10000
)

// AssistantService validates chat requests before they reach the AI provider.
type AssistantService struct {
	assistant ai.Assistant
	logger    *logging.ChanneledLogger
}

// NewAssistantService creates a new assistant service. assistant may be nil
// when no API key is configured.
func NewAssistantService(assistant ai.Assistant, logger *logging.ChanneledLogger) *AssistantService {
	return &AssistantService{assistant: assistant, logger: logger}
}

func (s *AssistantService) Enabled() bool {
	return s.assistant != nil
}

// Chat answers the conversation. The last turn must come from the user.
func (s *AssistantService) Chat(ctx context.Context, uid string, messages []ai.Message) (string, error) {
	if s.assistant == nil {
		return "", ErrNotConfigured
	}
	if len(messages) == 0 || len(messages) > maxAssistantTurns {
		return "", fmt.Errorf("%w: between 1 and %d messages are required", edu.ErrValidation, maxAssistantTurns)
	}
	for _, m := range messages {
		if m.Role != "user" && m.Role != "assistant" {
			return "", fmt.Errorf("%w: unknown role %q", edu.ErrValidation, m.Role)
		}
		if utf8.RuneCountInString(m.Content) > maxAssistantMessage {
			return "", fmt.Errorf("%w: message too long", edu.ErrValidation)
		}
	}
	last := messages[len(messages)-1]
	if last.Role != "user" || strings.TrimSpace(last.Content) == "" {
		return "", fmt.Errorf("%w: last message must be a non-empty user message", edu.ErrValidation)
	}

	log := s.logger.WithUser(logging.ChannelAssistant, uid)
	reply, err := s.assistant.Chat(ctx, messages)
	if err != nil {
		log.Error("Assistant chat failed", "error", err)
		return "", fmt.Errorf("assistant unavailable: %w", err)
	}
	log.Debug("Assistant answered", "turns", len(messages))
	return reply, nil
}

// Moderate checks text against the moderation endpoint.
func (s *AssistantService) Moderate(ctx context.Context, text string) (ai.Moderation, error) {
	if s.assistant == nil {
		return ai.Moderation{}, ErrNotConfigured
	}
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxModerationText {
		return ai.Moderation{}, fmt.Errorf("%w: text must be between 1 and %d characters", edu.ErrValidation, maxModerationText)
	}
	verdict, err := s.assistant.Moderate(ctx, text)
	if err != nil {
		s.logger.Assistant().Error("Moderation failed", "error", err)
		return ai.Moderation{}, fmt.Errorf("moderation unavailable: %w", err)
	}
	return verdict, nil
}
