package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

type fakeMedia struct{ calls int }

func (m *fakeMedia) ProcessAttachment(dataURL, roomID, id string) (*edu.Attachment, error) {
	m.calls++
	return &edu.Attachment{URL: "/media/attachments/" + roomID + "/" + id + ".webp", ContentType: "image/webp"}, nil
}

func TestAuthorizeRooms(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Set(ctx, ClassPath("7a"), edu.Class{Name: "7º A", ProfessorID: "prof", Members: map[string]bool{"bia": true}}))
	svc := NewMessageService(db, nil, logging.NewNopLogger())

	tests := []struct {
		name string
		uid  string
		room string
		want error
	}{
		{name: "group member", uid: "bia", room: "group_7a"},
		{name: "group professor", uid: "prof", room: "group_7a"},
		{name: "group outsider", uid: "caio", room: "group_7a", want: ErrForbidden},
		{name: "unknown class", uid: "bia", room: "group_9z", want: ErrNotFound},
		{name: "direct member", uid: "bia", room: edu.DirectRoom("bia", "caio")},
		{name: "direct outsider", uid: "ana", room: edu.DirectRoom("bia", "caio"), want: ErrForbidden},
		{name: "professor student", uid: "prof", room: edu.ProfessorStudentRoom("prof", "bia")},
		{name: "malformed", uid: "bia", room: "lobby", want: edu.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authorize(ctx, tt.uid, tt.room)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDeliverAndDecodeMessages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	media := &fakeMedia{}
	svc := NewMessageService(db, media, logging.NewNopLogger())
	clk := newTestClock()
	svc.now = clk.Now
	room := edu.DirectRoom("bia", "caio")
	sender := Author{UID: "bia", Name: "Bia"}

	first, err := svc.BuildMessage(sender, room, edu.NewMessageInput{Text: " oi "}, "", "m1")
	require.NoError(t, err)
	require.NoError(t, svc.Deliver(ctx, first))

	clk.Advance(time.Second)
	second, err := svc.BuildMessage(sender, room, edu.NewMessageInput{}, "data:image/png;base64,AAAA", "m2")
	require.NoError(t, err)
	require.NotNil(t, second.Attachment)
	assert.Equal(t, 1, media.calls)
	require.NoError(t, svc.Deliver(ctx, second))

	snap, err := db.Get(ctx, RoomPath(room))
	require.NoError(t, err)
	messages, err := svc.DecodeMessages(snap)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "oi", messages[0].Text)
	assert.Equal(t, room, messages[1].RoomID)

	_, err = svc.BuildMessage(sender, room, edu.NewMessageInput{Text: "  "}, "", "m3")
	assert.ErrorIs(t, err, edu.ErrValidation)

	noMedia := NewMessageService(db, nil, logging.NewNopLogger())
	_, err = noMedia.BuildMessage(sender, room, edu.NewMessageInput{}, "data:image/png;base64,AAAA", "m4")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRoomsListsGroupsAndApprovedConversations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Set(ctx, ClassPath("7a"), edu.Class{Members: map[string]bool{"bia": true}}))
	require.NoError(t, db.Set(ctx, ClassPath("8b"), edu.Class{Members: map[string]bool{"caio": true}}))
	require.NoError(t, db.Set(ctx, ConversationPath("c1"), edu.Conversation{
		RequesterID: "bia", RecipientID: "caio", Status: edu.ConversationApproved, RoomID: edu.DirectRoom("bia", "caio"),
	}))
	require.NoError(t, db.Set(ctx, ConversationPath("c2"), edu.Conversation{
		RequesterID: "ana", RecipientID: "bia", Status: edu.ConversationPending,
	}))

	rooms, err := NewMessageService(db, nil, logging.NewNopLogger()).Rooms(ctx, "bia")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"group_7a", edu.DirectRoom("bia", "caio")}, rooms)
}
