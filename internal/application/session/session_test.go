package session

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/messaging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/persistence/database"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// rejectingDB fails every transaction.
type rejectingDB struct{ realtime.Database }

func (rejectingDB) Transaction(context.Context, string, realtime.TxFunc) (realtime.Snapshot, error) {
	return realtime.Snapshot{}, errors.New("remote rejected")
}

type testEnv struct {
	store   *realtime.Store
	hub     *messaging.Hub
	manager *Manager
	clock   *testClock
}

func newTestEnv(t *testing.T, social realtime.Database) *testEnv {
	t.Helper()
	logger := logging.NewNopLogger()
	dir := t.TempDir()
	db, err := database.Open(database.Options{Path: filepath.Join(dir, "rt.db")}, logger)
	require.NoError(t, err)
	store, err := realtime.NewStore(db.DB, logger, nil)
	require.NoError(t, err)
	caches := localcache.NewStore(localcache.PathOpener(filepath.Join(dir, "cache.db"), logger), logger, nil)
	t.Cleanup(func() {
		store.Close()
		db.Close()
		caches.Close()
	})
	if social == nil {
		social = store
	}

	feed := services.NewFeedService(store, logger)
	catalog := services.NewCatalogService(store, logger)
	grades := services.NewGradeService(store, logger)
	hub := messaging.NewHub(logger, nil)
	clock := &testClock{now: time.UnixMilli(1_700_000_000_000)}
	manager := NewManager(Deps{
		DB:            store,
		Caches:        caches,
		Hub:           hub,
		Feed:          feed,
		Social:        services.NewSocialService(social, logger),
		Catalog:       catalog,
		Grades:        grades,
		Messages:      services.NewMessageService(store, nil, logger),
		Conversations: services.NewConversationService(store, logger),
		Warming:       services.NewWarmingService(feed, catalog, grades, caching.NewWarmingLock(), logger, nil),
		Logger:        logger,
	}).WithClock(clock.Now)
	t.Cleanup(manager.CloseAll)
	return &testEnv{store: store, hub: hub, manager: manager, clock: clock}
}

func waitEvent(t *testing.T, ch <-chan []byte, match func(messaging.Event) bool) messaging.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case raw := <-ch:
			var evt messaging.Event
			require.NoError(t, json.Unmarshal(raw, &evt))
			if match(evt) {
				return evt
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestOpenWarmsOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	sess, created, err := env.manager.Open(ctx, security.Identity{UID: "ana", Email: "ana@escola.br"})
	require.NoError(t, err)
	assert.True(t, created)
	env.manager.Wait()
	assert.True(t, sess.Warmed())
	assert.ElementsMatch(t,
		[]localcache.ResourceKey{localcache.KeyFeed, localcache.KeyVideos, localcache.KeyClasses, localcache.KeyGrades, localcache.KeyEvents},
		sess.Cache().ListKeys(ctx))

	again, created, err := env.manager.Open(ctx, security.Identity{UID: "ana"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, sess, again)
	assert.False(t, again.MarkWarmed(), "already warmed")
	assert.Equal(t, 1, env.manager.Count())

	_, _, err = env.manager.Open(ctx, security.Identity{})
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestCloseClearsSessionState(t *testing.T) {
	env := newTestEnv(t, nil)
	sess, _, err := env.manager.Open(context.Background(), security.Identity{UID: "ana", Email: "ana@escola.br"})
	require.NoError(t, err)
	env.manager.Wait()

	sess.RefreshRole(edu.RoleProfessor)
	hint, ok := sess.RoleHint()
	require.True(t, ok)
	assert.Equal(t, edu.RoleProfessor, hint.Role)
	assert.Equal(t, "ana@escola.br", hint.Email)
	require.NotNil(t, sess.Feed())

	assert.True(t, env.manager.Close("ana"))
	assert.False(t, env.manager.Close("ana"))
	assert.True(t, sess.Closed())
	assert.False(t, sess.Warmed())
	_, ok = sess.RoleHint()
	assert.False(t, ok)
	assert.Nil(t, sess.Feed())
	_, ok = sess.Resource(TopicFeed)
	assert.False(t, ok)
	_, ok = env.manager.Get("ana")
	assert.False(t, ok)
}

func TestRoleHintExpires(t *testing.T) {
	env := newTestEnv(t, nil)
	sess, _, err := env.manager.Open(context.Background(), security.Identity{UID: "ana"})
	require.NoError(t, err)

	sess.RefreshRole(edu.RoleStudent)
	env.clock.Advance(4 * time.Minute)
	_, ok := sess.RoleHint()
	assert.True(t, ok)
	env.clock.Advance(2 * time.Minute)
	_, ok = sess.RoleHint()
	assert.False(t, ok)
}

func TestCloseIdle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, _, err := env.manager.Open(ctx, security.Identity{UID: "ana"})
	require.NoError(t, err)
	_, _, err = env.manager.Open(ctx, security.Identity{UID: "bia"})
	require.NoError(t, err)

	env.clock.Advance(3 * time.Hour)
	_, ok := env.manager.Get("bia")
	require.True(t, ok)

	assert.Equal(t, 1, env.manager.CloseIdle(2*time.Hour))
	_, ok = env.manager.Get("ana")
	assert.False(t, ok)
	assert.Equal(t, 1, env.manager.Count())
}

func TestViewChangesArePublished(t *testing.T) {
	env := newTestEnv(t, nil)
	sess, _, err := env.manager.Open(context.Background(), security.Identity{UID: "ana", Name: "Ana"})
	require.NoError(t, err)

	ch := env.hub.AddClient("ana", TopicFeed)
	feed, ok := sess.Resource(TopicFeed)
	require.True(t, ok)
	assert.Same(t, sess.Feed(), feed)

	require.NoError(t, env.store.Set(context.Background(), services.PostPath("p1"), edu.Post{ID: "p1", AuthorID: "bia", Text: "oi", Timestamp: 1_700_000_000_000}))
	evt := waitEvent(t, ch, func(e messaging.Event) bool {
		if e.Type != messaging.EventSnapshot {
			return false
		}
		data, _ := json.Marshal(e.Data)
		var state struct {
			Posts []edu.Post `json:"posts"`
		}
		return json.Unmarshal(data, &state) == nil && len(state.Posts) == 1
	})
	assert.Equal(t, TopicFeed, evt.Resource)
}

func TestFailedMutationPublishesToast(t *testing.T) {
	env := newTestEnv(t, rejectingDB{})
	ctx := context.Background()
	require.NoError(t, env.store.Set(ctx, services.PostPath("p1"), edu.Post{ID: "p1", AuthorID: "bia", Text: "oi", Timestamp: 1_700_000_000_000}))

	sess, _, err := env.manager.Open(ctx, security.Identity{UID: "ana"})
	require.NoError(t, err)
	ch := env.hub.AddClient("ana", TopicFeed)
	feed := sess.Feed()
	select {
	case <-feed.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("feed never became ready")
	}

	_, err = feed.React("p1", edu.ReactionHeart)
	require.NoError(t, err)
	sess.Tracker().Wait()

	evt := waitEvent(t, ch, func(e messaging.Event) bool { return e.Type == messaging.EventToast })
	data, _ := json.Marshal(evt.Data)
	assert.Contains(t, string(data), `"mutation":"react"`)
	assert.Zero(t, feed.State().Posts[0].Likes)
}

func TestMessagesRequireMembership(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sess, _, err := env.manager.Open(ctx, security.Identity{UID: "ana"})
	require.NoError(t, err)

	_, err = sess.Messages(ctx, edu.DirectRoom("bia", "caio"))
	assert.ErrorIs(t, err, services.ErrForbidden)

	room := edu.DirectRoom("ana", "bia")
	v, err := sess.Messages(ctx, room)
	require.NoError(t, err)
	again, err := sess.Messages(ctx, room)
	require.NoError(t, err)
	assert.Same(t, v, again)

	_, ok := sess.Resource("unknown")
	assert.False(t, ok)
}
