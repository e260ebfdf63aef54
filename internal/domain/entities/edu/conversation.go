package edu

import (
	"fmt"
	"sort"
)

// ConversationStatus is the approval state of a conversation request.
type ConversationStatus string

const (
	ConversationPending  ConversationStatus = "pending"
	ConversationApproved ConversationStatus = "approved"
	ConversationRejected ConversationStatus = "rejected"
)

func (s ConversationStatus) rank() int {
	switch s {
	case ConversationApproved:
		return 3
	case ConversationPending:
		return 2
	case ConversationRejected:
		return 1
	}
	return 0
}

// Conversation is stored at conversations/<id>.
type Conversation struct {
	ID          string             `json:"id"`
	RequesterID string             `json:"requesterId"`
	RecipientID string             `json:"recipientId"`
	Status      ConversationStatus `json:"status"`
	RoomID      string             `json:"roomId,omitempty"`
	Message     string             `json:"message,omitempty"`
	CreatedAt   int64              `json:"createdAt"`
	UpdatedAt   int64              `json:"updatedAt"`
}

// PairKey identifies the participant pair regardless of who asked.
func (c Conversation) PairKey() string {
	return PairKey(c.RequesterID, c.RecipientID)
}

func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// Involves reports whether uid is one of the participants.
func (c Conversation) Involves(uid string) bool {
	return c.RequesterID == uid || c.RecipientID == uid
}

// Other returns the participant that is not uid.
func (c Conversation) Other(uid string) string {
	if c.RequesterID == uid {
		return c.RecipientID
	}
	return c.RequesterID
}

func (c Conversation) newest() int64 {
	if c.UpdatedAt > c.CreatedAt {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

// Decide moves a pending request to approved or rejected.
func (c Conversation) Decide(approve bool, now int64) (Conversation, error) {
	if c.Status != ConversationPending {
		return c, fmt.Errorf("%w: conversation is %s", ErrValidation, c.Status)
	}
	if approve {
		c.Status = ConversationApproved
		c.RoomID = DirectRoom(c.RequesterID, c.RecipientID)
	} else {
		c.Status = ConversationRejected
	}
	c.UpdatedAt = now
	return c, nil
}

// DedupeConversations keeps one record per participant pair: the highest
// status (approved, pending, rejected), then the most recent. The result is
// newest first.
func DedupeConversations(list []Conversation) []Conversation {
	best := make(map[string]Conversation, len(list))
	for _, c := range list {
		key := c.PairKey()
		cur, ok := best[key]
		if !ok || better(c, cur) {
			best[key] = c
		}
	}
	out := make([]Conversation, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].newest() != out[j].newest() {
			return out[i].newest() > out[j].newest()
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func better(a, b Conversation) bool {
	if a.Status.rank() != b.Status.rank() {
		return a.Status.rank() > b.Status.rank()
	}
	if a.newest() != b.newest() {
		return a.newest() > b.newest()
	}
	return a.ID > b.ID
}
