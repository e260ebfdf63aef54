// Package ai proxies the study assistant and content moderation to an
// OpenAI-compatible API.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("ai: OPENAI_API_KEY is not configured")
	// ErrEmptyResponse is returned when the upstream answered without choices.
	ErrEmptyResponse = errors.New("ai: empty response")
)

const systemPrompt = "Você é o assistente de estudos do EduTok. Responda em português do Brasil, " +
	"de forma clara e adequada para estudantes do ensino fundamental e médio."

// Config holds the provider configuration.
type Config struct {
	BaseURL      string
	APIKey       string
	ChatModel    string
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
	MaxHistory   int
}

// Message is one turn of a chat.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Moderation is the verdict for one text.
type Moderation struct {
	Flagged    bool            `json:"flagged"`
	Categories map[string]bool `json:"categories,omitempty"`
}

// Assistant is what the HTTP layer depends on.
type Assistant interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Moderate(ctx context.Context, text string) (Moderation, error)
}

// Provider talks to the upstream API with exponential backoff.
type Provider struct {
	client *openai.Client
	config Config
	logger *slog.Logger
}

// NewProvider creates a new AI provider.
func NewProvider(cfg Config, logger *slog.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4oMini
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 20
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: logger,
	}, nil
}

// Chat performs a chat completion. Only the last MaxHistory turns are sent,
// after the school system prompt. Client supplied system turns are dropped.
func (p *Provider) Chat(ctx context.Context, messages []Message) (string, error) {
	llmMessages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: systemPrompt}}
	if len(messages) > p.config.MaxHistory {
		messages = messages[len(messages)-p.config.MaxHistory:]
	}
	for _, msg := range messages {
		role := strings.ToLower(msg.Role)
		if role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			continue
		}
		llmMessages = append(llmMessages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	var result string
	err := p.doWithRetry(ctx, func() error {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    p.config.ChatModel,
			Messages: llmMessages,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}
		result = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to complete chat: %w", err)
	}
	return result, nil
}

// Moderate classifies text with the moderation endpoint.
func (p *Provider) Moderate(ctx context.Context, text string) (Moderation, error) {
	var verdict Moderation
	err := p.doWithRetry(ctx, func() error {
		resp, err := p.client.Moderations(ctx, openai.ModerationRequest{Input: text})
		if err != nil {
			return err
		}
		if len(resp.Results) == 0 {
			return ErrEmptyResponse
		}
		verdict = Moderation{Flagged: resp.Results[0].Flagged, Categories: flaggedCategories(resp.Results[0].Categories)}
		return nil
	})
	if err != nil {
		return Moderation{}, fmt.Errorf("failed to moderate: %w", err)
	}
	return verdict, nil
}

func flaggedCategories(categories any) map[string]bool {
	data, err := json.Marshal(categories)
	if err != nil {
		return nil
	}
	var all map[string]bool
	if err := json.Unmarshal(data, &all); err != nil {
		return nil
	}
	out := make(map[string]bool)
	for name, hit := range all {
		if hit {
			out[name] = true
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// doWithRetry executes fn with exponential backoff. Client errors other than
// 429 are not retried.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || attempt == p.config.MaxRetries-1 {
			break
		}
		wait := p.config.RetryBackoff << attempt
		p.logger.Debug("AI request failed, retrying", "attempt", attempt+1, "wait_time", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
