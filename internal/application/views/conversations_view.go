package views

import (
	"context"
	"fmt"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

// ConversationsView lists the current user's conversations, one per
// participant pair.
type ConversationsView struct {
	*LiveView[[]edu.Conversation]
	svc     *services.ConversationService
	tracker *Tracker
	uid     string
}

func NewConversationsView(db realtime.Database, svc *services.ConversationService, tracker *Tracker, cache *localcache.Cache, uid string, logger *logging.ChanneledLogger) *ConversationsView {
	return &ConversationsView{
		LiveView: NewLiveView(LiveConfig[[]edu.Conversation]{
			DB:   db,
			Path: services.ConversationsPath,
			Decode: func(snap realtime.Snapshot) ([]edu.Conversation, error) {
				return svc.DecodeFor(uid, snap), nil
			},
			Cache:  cache,
			Key:    localcache.KeyConversations,
			TTL:    config.ConversationsCacheTTL,
			Logger: logger,
		}),
		svc:     svc,
		tracker: tracker,
		uid:     uid,
	}
}

// Request shows a pending request right away. A pair that already has a
// pending or approved conversation is rejected with ErrConflict.
func (v *ConversationsView) Request(to, message string) (edu.Conversation, error) {
	if to == "" || to == v.uid {
		return edu.Conversation{}, fmt.Errorf("%w: invalid participants", edu.ErrValidation)
	}
	pair := edu.PairKey(v.uid, to)
	for _, c := range v.State().Data {
		if c.PairKey() == pair && c.Status != edu.ConversationRejected {
			return c, services.ErrConflict
		}
	}

	now := time.Now().UnixMilli()
	pending := edu.Conversation{
		ID:          security.GenerateULID(),
		RequesterID: v.uid,
		RecipientID: to,
		Status:      edu.ConversationPending,
		Message:     message,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	epoch := v.Mutate(func(list []edu.Conversation) []edu.Conversation {
		return edu.DedupeConversations(append(cloneConversations(list), pending))
	})
	revert := func() bool {
		return v.Revert(epoch, func(list []edu.Conversation) []edu.Conversation {
			return withoutConversation(list, pending.ID)
		})
	}
	v.tracker.Do("request_conversation", to, revert, func(ctx context.Context) error {
		_, err := v.svc.Request(ctx, v.uid, to, message)
		return err
	})
	return pending, nil
}

// Decide approves or rejects a request addressed to the current user.
func (v *ConversationsView) Decide(id string, approve bool) (edu.Conversation, error) {
	var current edu.Conversation
	found := false
	for _, c := range v.State().Data {
		if c.ID == id {
			current, found = c, true
			break
		}
	}
	if !found {
		return edu.Conversation{}, services.ErrNotFound
	}
	if current.RecipientID != v.uid {
		return edu.Conversation{}, services.ErrForbidden
	}
	decided, err := current.Decide(approve, time.Now().UnixMilli())
	if err != nil {
		return edu.Conversation{}, err
	}

	replace := func(with edu.Conversation) func([]edu.Conversation) []edu.Conversation {
		return func(list []edu.Conversation) []edu.Conversation {
			out := cloneConversations(list)
			for i := range out {
				if out[i].ID == id {
					out[i] = with
				}
			}
			return out
		}
	}
	epoch := v.Mutate(replace(decided))
	revert := func() bool { return v.Revert(epoch, replace(current)) }

	name := "reject_conversation"
	if approve {
		name = "approve_conversation"
	}
	v.tracker.Do(name, id, revert, func(ctx context.Context) error {
		_, err := v.svc.Decide(ctx, v.uid, id, approve)
		return err
	})
	return decided, nil
}

func cloneConversations(list []edu.Conversation) []edu.Conversation {
	return append([]edu.Conversation(nil), list...)
}

func withoutConversation(list []edu.Conversation, id string) []edu.Conversation {
	out := make([]edu.Conversation, 0, len(list))
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
