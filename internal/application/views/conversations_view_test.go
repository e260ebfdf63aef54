package views

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
)

func newConversationsView(t *testing.T, f *fixture, tracker *Tracker, uid string) *ConversationsView {
	t.Helper()
	v := NewConversationsView(f.db, services.NewConversationService(f.db, f.logger), tracker, f.caches.Scope(uid), uid, f.logger)
	t.Cleanup(v.Close)
	v.Start(context.Background())
	waitFor(t, v.Ready())
	return v
}

func seedPeople(t *testing.T, f *fixture, uids ...string) {
	t.Helper()
	for _, uid := range uids {
		require.NoError(t, f.store.Set(context.Background(), services.ProfilePath(uid), edu.Profile{UID: uid, Name: uid}))
	}
}

func TestConversationRequestAndApprove(t *testing.T) {
	f := newFixture(t)
	seedPeople(t, f, "ana", "bia")
	tracker := NewTracker(f.logger, nil, 2*time.Second)
	failures := &failureLog{}
	tracker.OnFailure(failures.add)

	bia := newConversationsView(t, f, tracker, "bia")
	ana := newConversationsView(t, f, tracker, "ana")

	pending, err := bia.Request("ana", "posso tirar uma dúvida?")
	require.NoError(t, err)
	assert.Equal(t, edu.ConversationPending, pending.Status)
	require.Len(t, bia.State().Data, 1)

	tracker.Wait()
	assert.Empty(t, failures.all())

	var stored edu.Conversation
	require.Eventually(t, func() bool {
		list := ana.State().Data
		if len(list) != 1 {
			return false
		}
		stored = list[0]
		return true
	}, eventually, tick)
	assert.Equal(t, "bia", stored.RequesterID)

	_, err = bia.Request("ana", "de novo")
	assert.ErrorIs(t, err, services.ErrConflict)

	require.Eventually(t, func() bool {
		list := bia.State().Data
		return len(list) == 1 && list[0].ID == stored.ID
	}, eventually, tick, "authoritative record replaces the optimistic one")
	_, err = bia.Decide(stored.ID, true)
	assert.ErrorIs(t, err, services.ErrForbidden)

	decided, err := ana.Decide(stored.ID, true)
	require.NoError(t, err)
	assert.Equal(t, edu.ConversationApproved, decided.Status)
	assert.Equal(t, edu.DirectRoom("ana", "bia"), decided.RoomID)

	tracker.Wait()
	assert.Empty(t, failures.all())
	assert.Eventually(t, func() bool {
		list := bia.State().Data
		return len(list) == 1 && list[0].Status == edu.ConversationApproved
	}, eventually, tick)

	_, err = ana.Decide("nope", true)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestConversationRequestRollsBack(t *testing.T) {
	f := newFixture(t)
	seedPeople(t, f, "ana", "bia")
	tracker := NewTracker(f.logger, nil, 2*time.Second)
	bia := newConversationsView(t, f, tracker, "bia")
	f.db.down.Store(true)

	_, err := bia.Request("ana", "")
	require.NoError(t, err)
	require.Len(t, bia.State().Data, 1)

	tracker.Wait()
	assert.Empty(t, bia.State().Data)

	_, err = bia.Request("bia", "")
	assert.ErrorIs(t, err, edu.ErrValidation)
}
