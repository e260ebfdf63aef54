package edu

import (
	"fmt"
	"sort"
	"strings"
)

// RoomKind tells how a room's members are determined.
type RoomKind string

const (
	RoomGroup            RoomKind = "group"
	RoomDirect           RoomKind = "dm"
	RoomProfessorStudent RoomKind = "ps"
)

// Attachment is an image sent with a message.
type Attachment struct {
	URL         string `json:"url"`
	ThumbURL    string `json:"thumbUrl,omitempty"`
	ContentType string `json:"contentType"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// Message is stored at messages/<room>/<id>.
type Message struct {
	ID          string      `json:"id"`
	RoomID      string      `json:"roomId"`
	SenderID    string      `json:"senderId"`
	SenderName  string      `json:"senderName"`
	SenderPhoto string      `json:"senderPhoto,omitempty"`
	Text        string      `json:"text"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	Timestamp   int64       `json:"timestamp"`
}

func GroupRoom(classID string) string {
	return "group_" + classID
}

func DirectRoom(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm_" + a + "_" + b
}

func ProfessorStudentRoom(professorUID, studentUID string) string {
	return "ps_" + professorUID + "_" + studentUID
}

// Room is a parsed room id.
type Room struct {
	ID      string
	Kind    RoomKind
	ClassID string
	Members []string
}

// ParseRoom splits a room id. Group members are not encoded in the id and
// must be looked up from the class.
func ParseRoom(id string) (Room, error) {
	kind, rest, ok := strings.Cut(id, "_")
	if !ok || rest == "" {
		return Room{}, fmt.Errorf("%w: malformed room %q", ErrValidation, id)
	}
	room := Room{ID: id, Kind: RoomKind(kind)}
	switch room.Kind {
	case RoomGroup:
		room.ClassID = rest
	case RoomDirect, RoomProfessorStudent:
		a, b, ok := strings.Cut(rest, "_")
		if !ok || a == "" || b == "" || strings.Contains(b, "_") {
			return Room{}, fmt.Errorf("%w: malformed room %q", ErrValidation, id)
		}
		if room.Kind == RoomDirect && DirectRoom(a, b) != id {
			return Room{}, fmt.Errorf("%w: direct room %q is not canonical", ErrValidation, id)
		}
		room.Members = []string{a, b}
	default:
		return Room{}, fmt.Errorf("%w: unknown room kind %q", ErrValidation, kind)
	}
	return room, nil
}

// HasMember reports membership for rooms that encode their members.
func (r Room) HasMember(uid string) bool {
	for _, m := range r.Members {
		if m == uid {
			return true
		}
	}
	return false
}

// NewMessageInput is what a sender submits.
type NewMessageInput struct {
	Text string `json:"text"`
}

func (in NewMessageInput) Validate(hasAttachment bool) error {
	text := strings.TrimSpace(in.Text)
	if text == "" && !hasAttachment {
		return fmt.Errorf("%w: message is empty", ErrValidation)
	}
	if len([]rune(text)) > 4000 {
		return fmt.Errorf("%w: message longer than 4000 characters", ErrValidation)
	}
	return nil
}

// SortMessages orders oldest first, ties by id.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Timestamp != messages[j].Timestamp {
			return messages[i].Timestamp < messages[j].Timestamp
		}
		return messages[i].ID < messages[j].ID
	})
}
