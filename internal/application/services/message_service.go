package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

// AttachmentProcessor turns an uploaded data URL into a stored attachment.
type AttachmentProcessor interface {
	ProcessAttachment(dataURL, roomID, id string) (*edu.Attachment, error)
}

// MessageService authorizes rooms and writes chat messages.
type MessageService struct {
	db     realtime.Database
	media  AttachmentProcessor
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewMessageService creates a new message service. media may be nil, in
// which case attachments are rejected.
func NewMessageService(db realtime.Database, media AttachmentProcessor, logger *logging.ChanneledLogger) *MessageService {
	return &MessageService{db: db, media: media, logger: logger, now: time.Now}
}

// Authorize parses roomID and checks uid may read and write it. Group rooms
// are checked against the class member list.
func (s *MessageService) Authorize(ctx context.Context, uid, roomID string) (edu.Room, error) {
	room, err := edu.ParseRoom(roomID)
	if err != nil {
		return edu.Room{}, err
	}
	if room.Kind != edu.RoomGroup {
		if !room.HasMember(uid) {
			return edu.Room{}, ErrForbidden
		}
		return room, nil
	}

	class, ok, err := realtime.GetAs[edu.Class](ctx, s.db, ClassPath(room.ClassID))
	if err != nil {
		return edu.Room{}, fmt.Errorf("failed to read class: %w", err)
	}
	if !ok {
		return edu.Room{}, ErrNotFound
	}
	if !class.Members[uid] && class.ProfessorID != uid {
		return edu.Room{}, ErrForbidden
	}
	return room, nil
}

// DecodeMessages decodes a room snapshot, oldest first.
func (s *MessageService) DecodeMessages(snap realtime.Snapshot) ([]edu.Message, error) {
	roomID := snap.Key()
	messages := decodeChildren(snap.Children, func(m *edu.Message, key string) {
		if m.ID == "" {
			m.ID = key
		}
		m.RoomID = roomID
	}, func(key string, err error) {
		s.logger.Messaging().Warn("Skipping malformed message", "roomId", roomID, "messageId", key, "error", err)
	})
	edu.SortMessages(messages)
	return messages, nil
}

// BuildMessage validates the input, stores any attachment, and returns the
// record that Deliver will write.
func (s *MessageService) BuildMessage(sender Author, roomID string, in edu.NewMessageInput, attachment string, id string) (edu.Message, error) {
	if err := in.Validate(attachment != ""); err != nil {
		return edu.Message{}, err
	}
	msg := edu.Message{
		ID:          id,
		RoomID:      roomID,
		SenderID:    sender.UID,
		SenderName:  sender.Name,
		SenderPhoto: sender.Photo,
		Text:        strings.TrimSpace(in.Text),
		Timestamp:   s.now().UnixMilli(),
	}
	if attachment != "" {
		if s.media == nil {
			return edu.Message{}, fmt.Errorf("%w: attachments are disabled", ErrNotConfigured)
		}
		att, err := s.media.ProcessAttachment(attachment, roomID, id)
		if err != nil {
			return edu.Message{}, fmt.Errorf("%w: %v", edu.ErrValidation, err)
		}
		msg.Attachment = att
	}
	return msg, nil
}

// Deliver writes the message to messages/<room>/<id>.
func (s *MessageService) Deliver(ctx context.Context, msg edu.Message) error {
	if err := s.db.Set(ctx, realtime.Join(RoomPath(msg.RoomID), msg.ID), msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	s.logger.Messaging().Debug("Message delivered", "roomId", msg.RoomID, "messageId", msg.ID)
	return nil
}

// Rooms lists the rooms uid can open: class groups plus approved direct
// conversations.
func (s *MessageService) Rooms(ctx context.Context, uid string) ([]string, error) {
	classes, err := s.db.Get(ctx, ClassesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read classes: %w", err)
	}
	var rooms []string
	for _, class := range decodeChildren(classes.Children, classKey, nil) {
		if class.Members[uid] || class.ProfessorID == uid {
			rooms = append(rooms, edu.GroupRoom(class.ID))
		}
	}

	conversations, err := s.db.Get(ctx, ConversationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}
	for _, c := range decodeChildren(conversations.Children, conversationKey, nil) {
		if c.Status == edu.ConversationApproved && c.Involves(uid) && c.RoomID != "" {
			rooms = append(rooms, c.RoomID)
		}
	}
	return rooms, nil
}
