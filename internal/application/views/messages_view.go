package views

import (
	"context"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

// MessagesView is one chat room. Rooms share the messages cache entry, one
// slot per room.
type MessagesView struct {
	*LiveView[[]edu.Message]
	room     string
	messages *services.MessageService
	tracker  *Tracker
	me       services.Author
}

func NewMessagesView(db realtime.Database, messages *services.MessageService, tracker *Tracker, cache *localcache.Cache, me services.Author, room string, logger *logging.ChanneledLogger) *MessagesView {
	return &MessagesView{
		LiveView: NewLiveView(LiveConfig[[]edu.Message]{
			DB:     db,
			Path:   services.RoomPath(room),
			Query:  services.NewestQuery(config.MessagesLiveWindow),
			Decode: messages.DecodeMessages,
			Cache:  cache,
			Key:    localcache.KeyMessages,
			Slot:   room,
			TTL:    config.MessagesCacheTTL,
			Logger: logger,
		}),
		room:     room,
		messages: messages,
		tracker:  tracker,
		me:       me,
	}
}

func (v *MessagesView) Room() string { return v.room }

// Send shows the message immediately and delivers it in the background.
// Attachments are stored before Send returns.
func (v *MessagesView) Send(in edu.NewMessageInput, attachment string) (edu.Message, error) {
	msg, err := v.messages.BuildMessage(v.me, v.room, in, attachment, security.GenerateULID())
	if err != nil {
		return edu.Message{}, err
	}

	epoch := v.Mutate(func(list []edu.Message) []edu.Message {
		out := append(withoutMessage(list, msg.ID), msg)
		edu.SortMessages(out)
		return out
	})
	revert := func() bool {
		return v.Revert(epoch, func(list []edu.Message) []edu.Message { return withoutMessage(list, msg.ID) })
	}
	v.tracker.Do("send_message", v.room, revert, func(ctx context.Context) error {
		return v.messages.Deliver(ctx, msg)
	})
	return msg, nil
}

func withoutMessage(list []edu.Message, id string) []edu.Message {
	out := make([]edu.Message, 0, len(list)+1)
	for _, m := range list {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
