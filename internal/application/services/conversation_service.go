package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
)

// ConversationService handles direct-message requests between users.
type ConversationService struct {
	db     realtime.Database
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewConversationService creates a new conversation service
func NewConversationService(db realtime.Database, logger *logging.ChanneledLogger) *ConversationService {
	return &ConversationService{db: db, logger: logger, now: time.Now}
}

// DecodeFor returns uid's conversations, one per participant pair.
func (s *ConversationService) DecodeFor(uid string, snap realtime.Snapshot) []edu.Conversation {
	all := decodeChildren(snap.Children, conversationKey, func(key string, err error) {
		s.logger.Messaging().Warn("Skipping malformed conversation", "conversationId", key, "error", err)
	})
	mine := all[:0]
	for _, c := range all {
		if c.Involves(uid) {
			mine = append(mine, c)
		}
	}
	return edu.DedupeConversations(mine)
}

// List is a one-shot read of uid's conversations.
func (s *ConversationService) List(ctx context.Context, uid string) ([]edu.Conversation, error) {
	snap, err := s.db.Get(ctx, ConversationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return s.DecodeFor(uid, snap), nil
}

// Request opens a pending conversation from -> to. A pair that already has
// a pending or approved conversation gets ErrConflict and the existing record.
func (s *ConversationService) Request(ctx context.Context, from, to, message string) (edu.Conversation, error) {
	if from == "" || to == "" || from == to {
		return edu.Conversation{}, fmt.Errorf("%w: invalid participants", edu.ErrValidation)
	}
	if _, ok, err := realtime.GetAs[edu.Profile](ctx, s.db, ProfilePath(to)); err != nil {
		return edu.Conversation{}, err
	} else if !ok {
		return edu.Conversation{}, ErrNotFound
	}

	existing, err := s.List(ctx, from)
	if err != nil {
		return edu.Conversation{}, err
	}
	pair := edu.PairKey(from, to)
	for _, c := range existing {
		if c.PairKey() == pair && c.Status != edu.ConversationRejected {
			return c, ErrConflict
		}
	}

	now := s.now().UnixMilli()
	c := edu.Conversation{
		ID:          security.GenerateULID(),
		RequesterID: from,
		RecipientID: to,
		Status:      edu.ConversationPending,
		Message:     strings.TrimSpace(message),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.Set(ctx, ConversationPath(c.ID), c); err != nil {
		return edu.Conversation{}, fmt.Errorf("failed to request conversation: %w", err)
	}
	s.logger.Messaging().Info("Conversation requested", "conversationId", c.ID)
	return c, nil
}

// Decide approves or rejects a pending request. Only the recipient may decide.
func (s *ConversationService) Decide(ctx context.Context, uid, id string, approve bool) (edu.Conversation, error) {
	c, err := realtime.Transact(ctx, s.db, ConversationPath(id), func(c *edu.Conversation, exists bool) error {
		if !exists {
			return ErrNotFound
		}
		if c.ID == "" {
			c.ID = id
		}
		if c.RecipientID != uid {
			return ErrForbidden
		}
		decided, err := c.Decide(approve, s.now().UnixMilli())
		if err != nil {
			return err
		}
		*c = decided
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) || errors.Is(err, edu.ErrValidation) {
			return edu.Conversation{}, err
		}
		return edu.Conversation{}, fmt.Errorf("failed to decide conversation: %w", err)
	}
	s.logger.Messaging().Info("Conversation decided", "conversationId", id, "status", c.Status)
	return c, nil
}
