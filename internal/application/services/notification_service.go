package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/email"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
)

// NotificationRequest is an announcement to send. Recipients are explicit
// addresses, the members of ClassID, or both.
type NotificationRequest struct {
	Subject    string   `json:"subject"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	ActionURL  string   `json:"actionUrl"`
	ActionText string   `json:"actionText"`
	Recipients []string `json:"recipients"`
	ClassID    string   `json:"classId"`
}

// NotificationService emails announcements and keeps their history.
type NotificationService struct {
	db     realtime.Database
	mailer email.Service
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewNotificationService creates a new notification service. mailer may be
// nil when Resend is not configured.
func NewNotificationService(db realtime.Database, mailer email.Service, logger *logging.ChanneledLogger) *NotificationService {
	return &NotificationService{db: db, mailer: mailer, logger: logger, now: time.Now}
}

// Send requires a secretariat or admin role.
func (s *NotificationService) Send(ctx context.Context, role edu.Role, sender Author, req NotificationRequest) (edu.Notification, error) {
	if !role.CanNotify() {
		return edu.Notification{}, ErrForbidden
	}
	if s.mailer == nil {
		return edu.Notification{}, ErrNotConfigured
	}
	req.Subject = strings.TrimSpace(req.Subject)
	req.Body = strings.TrimSpace(req.Body)
	if req.Subject == "" || req.Body == "" {
		return edu.Notification{}, fmt.Errorf("%w: subject and body are required", edu.ErrValidation)
	}

	recipients, err := s.resolveRecipients(ctx, req)
	if err != nil {
		return edu.Notification{}, err
	}
	if len(recipients) == 0 {
		return edu.Notification{}, fmt.Errorf("%w: no recipients", edu.ErrValidation)
	}

	title := req.Title
	if title == "" {
		title = req.Subject
	}
	emailID, err := s.mailer.SendNotification(ctx, email.Notification{
		To:        recipients,
		Subject:   req.Subject,
		Title:     title,
		Body:      req.Body,
		ActionURL: req.ActionURL,
		ActionTxt: req.ActionText,
		Sender:    sender.Name,
	})
	if err != nil {
		s.logger.System().Error("Notification email failed", "sender", logging.MaskID(sender.UID), "error", err)
		return edu.Notification{}, fmt.Errorf("failed to send notification: %w", err)
	}

	record := edu.Notification{
		ID:         security.GenerateULID(),
		Subject:    req.Subject,
		Title:      title,
		Body:       req.Body,
		ActionURL:  req.ActionURL,
		ClassID:    req.ClassID,
		SenderID:   sender.UID,
		SenderName: sender.Name,
		Recipients: len(recipients),
		EmailID:    emailID,
		Timestamp:  s.now().UnixMilli(),
	}
	if err := s.db.Set(ctx, realtime.Join(NotificationsPath, record.ID), record); err != nil {
		// the email is already out; history is best effort
		s.logger.System().Warn("Failed to record notification", "notificationId", record.ID, "error", err)
	}
	s.logger.System().Info("Notification sent", "notificationId", record.ID, "recipients", len(recipients))
	return record, nil
}

func (s *NotificationService) resolveRecipients(ctx context.Context, req NotificationRequest) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(addr string) {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		out = append(out, addr)
	}
	for _, addr := range req.Recipients {
		if !strings.Contains(addr, "@") {
			return nil, fmt.Errorf("%w: invalid recipient %q", edu.ErrValidation, addr)
		}
		add(addr)
	}

	if req.ClassID != "" {
		class, ok, err := realtime.GetAs[edu.Class](ctx, s.db, ClassPath(req.ClassID))
		if err != nil {
			return nil, fmt.Errorf("failed to read class: %w", err)
		}
		if !ok {
			return nil, ErrNotFound
		}
		members := make([]string, 0, len(class.Members))
		for uid, in := range class.Members {
			if in {
				members = append(members, uid)
			}
		}
		sort.Strings(members)
		for _, uid := range members {
			profile, ok, err := realtime.GetAs[edu.Profile](ctx, s.db, ProfilePath(uid))
			if err != nil {
				return nil, fmt.Errorf("failed to read profile: %w", err)
			}
			if ok && strings.Contains(profile.Email, "@") {
				add(profile.Email)
			}
		}
	}
	return out, nil
}

// DecodeNotifications decodes the history, newest first.
func (s *NotificationService) DecodeNotifications(snap realtime.Snapshot) ([]edu.Notification, error) {
	list := decodeChildren(snap.Children, func(n *edu.Notification, key string) {
		if n.ID == "" {
			n.ID = key
		}
	}, nil)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Timestamp != list[j].Timestamp {
			return list[i].Timestamp > list[j].Timestamp
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

// List is a one-shot read of the notification history.
func (s *NotificationService) List(ctx context.Context) ([]edu.Notification, error) {
	snap, err := s.db.Get(ctx, NotificationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return s.DecodeNotifications(snap)
}
