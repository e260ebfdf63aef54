// Package email sends school notifications as transactional email.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resendlabs/resend-go"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/email/templates"
)

// ErrNotConfigured is returned when no Resend API key is set.
var ErrNotConfigured = errors.New("email: RESEND_API_KEY is not configured")

// Notification is one announcement sent by the secretariat.
type Notification struct {
	To        []string
	Subject   string
	Title     string
	Body      string
	ActionURL string
	ActionTxt string
	Sender    string
}

func (n Notification) Validate() error {
	if len(n.To) == 0 {
		return errors.New("at least one recipient is required")
	}
	for _, addr := range n.To {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("invalid recipient %q", addr)
		}
	}
	if strings.TrimSpace(n.Subject) == "" || strings.TrimSpace(n.Body) == "" {
		return errors.New("subject and body are required")
	}
	return nil
}

// Service defines the interface for sending emails, allowing for mock implementations in tests.
type Service interface {
	SendNotification(ctx context.Context, n Notification) (string, error)
}

// ResendClient is the concrete implementation of the email Service using the Resend API.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
}

// NewService creates a new email service client, returning the Service interface.
func NewService(apiKey, fromEmail, fromName string) (Service, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if fromEmail == "" {
		fromEmail = "noreply@edutok.app"
	}
	if fromName == "" {
		fromName = "EduTok"
	}
	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendNotification renders and sends n. Recipients are sent as BCC so
// families never see each other's addresses.
func (c *ResendClient) SendNotification(ctx context.Context, n Notification) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	html, err := templates.RenderNotification(templates.NotificationProps{
		Title:      n.Title,
		Body:       n.Body,
		ActionURL:  n.ActionURL,
		ActionText: n.ActionTxt,
		Sender:     n.Sender,
	})
	if err != nil {
		return "", err
	}

	from := fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail)
	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{c.fromEmail},
		Bcc:     n.To,
		Subject: n.Subject,
		Html:    html,
		Text:    n.Body,
	}

	sent, err := c.client.Emails.Send(params)
	if err != nil {
		return "", fmt.Errorf("failed to send notification via Resend: %w", err)
	}
	return sent.Id, nil
}
