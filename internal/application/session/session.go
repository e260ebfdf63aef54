// Package session holds the process-scoped state of each logged-in user:
// the cache scope, the warmed flag, the role hint and the live views that
// are pushed to the user's websocket clients.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/application/views"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/messaging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/metrics"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

// Live topics a session publishes on.
const (
	TopicFeed          = "feed"
	TopicGrades        = "grades"
	TopicConversations = "conversations"
	TopicProfiles      = "profiles"
	TopicVideos        = "videos"
	TopicClasses       = "classes"
	TopicEvents        = "events"
	topicMessagesPfx   = "messages:"
)

// MessagesTopic is the live topic of one chat room.
func MessagesTopic(room string) string { return topicMessagesPfx + room }

// Deps are the singletons every session shares.
type Deps struct {
	DB            realtime.Database
	Caches        *localcache.Store
	Hub           messaging.Publisher
	Feed          *services.FeedService
	Social        *services.SocialService
	Catalog       *services.CatalogService
	Grades        *services.GradeService
	Messages      *services.MessageService
	Conversations *services.ConversationService
	Warming       *services.WarmingService
	Logger        *logging.ChanneledLogger
	Collector     *metrics.Collector
}

// Session is one user's state. Views are created on first use and closed
// with the session.
type Session struct {
	identity security.Identity
	cache    *localcache.Cache
	deps     *Deps
	tracker  *views.Tracker
	now      func() time.Time

	warmed     atomic.Bool
	lastActive atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	closed        bool
	role          *RoleCache
	feed          *views.FeedView
	grades        *views.GradesView
	conversations *views.ConversationsView
	profiles      *views.ProfilesView
	rooms         map[string]*views.MessagesView
	videos        *views.CachedView[[]edu.Video]
	classes       *views.CachedView[[]edu.Class]
	events        *views.CachedView[[]edu.Event]
	resources     []views.Resource
}

func newSession(identity security.Identity, deps *Deps, now func() time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		identity: identity,
		cache:    deps.Caches.Scope(identity.UID),
		deps:     deps,
		tracker:  views.NewTracker(deps.Logger, deps.Collector, config.RemoteWriteTimeout),
		now:      now,
		ctx:      ctx,
		cancel:   cancel,
		rooms:    make(map[string]*views.MessagesView),
	}
	s.tracker.OnFailure(func(f views.MutationFailure) {
		s.publishAll(messaging.Event{Type: messaging.EventToast, Data: f})
	})
	s.Touch()
	return s
}

func (s *Session) UID() string   { return s.identity.UID }
func (s *Session) Email() string { return s.identity.Email }

func (s *Session) Identity() security.Identity { return s.identity }

// Author is the attribution used for posts and messages.
func (s *Session) Author() services.Author {
	return services.Author{UID: s.identity.UID, Name: s.identity.Name, Photo: s.identity.Photo}
}

// Cache is the user's scope of the local cache.
func (s *Session) Cache() *localcache.Cache { return s.cache }

func (s *Session) Tracker() *views.Tracker { return s.tracker }

// MarkWarmed sets the warmed flag and reports whether this call set it.
func (s *Session) MarkWarmed() bool { return s.warmed.CompareAndSwap(false, true) }

func (s *Session) Warmed() bool { return s.warmed.Load() }

func (s *Session) ResetWarmed() { s.warmed.Store(false) }

// RefreshRole replaces the role hint with a verified role.
func (s *Session) RefreshRole(role edu.Role) {
	s.mu.Lock()
	s.role = &RoleCache{Role: role, UID: s.identity.UID, Email: s.identity.Email, CachedAt: s.now()}
	s.mu.Unlock()
}

// RoleHint returns the cached role while it is fresh.
func (s *Session) RoleHint() (RoleCache, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.role == nil || !s.role.Fresh(s.now(), config.RoleCacheTTL) {
		return RoleCache{}, false
	}
	return *s.role, true
}

func (s *Session) Touch() { s.lastActive.Store(s.now().UnixNano()) }

func (s *Session) LastActive() time.Time { return time.Unix(0, s.lastActive.Load()) }

func (s *Session) publish(topic string, r views.Resource) {
	if s.deps.Hub == nil {
		return
	}
	s.deps.Hub.Publish(s.identity.UID, topic, messaging.Event{Type: messaging.EventSnapshot, Resource: topic, Data: r.Snapshot()})
}

func (s *Session) publishAll(evt messaging.Event) {
	if s.deps.Hub == nil {
		return
	}
	s.deps.Hub.PublishAll(s.identity.UID, evt)
}

// track registers r for publishing and closing. Callers hold s.mu.
func (s *Session) track(topic string, r views.Resource) {
	r.OnChange(func() { s.publish(topic, r) })
	s.resources = append(s.resources, r)
}

// Feed returns the Efeed view, starting it on first use.
func (s *Session) Feed() *views.FeedView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feed != nil || s.closed {
		return s.feed
	}
	v := views.NewFeedView(s.deps.DB, s.deps.Feed, s.deps.Social, s.tracker, s.deps.Logger, views.FeedOptions{
		Me:    s.Author(),
		Cache: s.cache,
	})
	if s.profiles != nil {
		v.SetCounters(s.profiles.AdjustPostCount)
	}
	s.track(TopicFeed, v)
	s.feed = v
	v.Start(s.ctx)
	return v
}

// Profiles returns the directory view with the user's follow edges.
func (s *Session) Profiles() *views.ProfilesView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profiles != nil || s.closed {
		return s.profiles
	}
	v := views.NewProfilesView(s.deps.DB, s.deps.Catalog, s.deps.Social, s.tracker, s.cache, s.identity.UID, s.deps.Logger)
	if s.feed != nil {
		s.feed.SetCounters(v.AdjustPostCount)
	}
	s.track(TopicProfiles, v)
	s.profiles = v
	v.Start(s.ctx)
	return v
}

func (s *Session) Grades() *views.GradesView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grades != nil || s.closed {
		return s.grades
	}
	v := views.NewGradesView(s.deps.DB, s.deps.Grades, s.cache, s.identity.UID, s.deps.Logger)
	s.track(TopicGrades, v)
	s.grades = v
	v.Start(s.ctx)
	return v
}

func (s *Session) Conversations() *views.ConversationsView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversations != nil || s.closed {
		return s.conversations
	}
	v := views.NewConversationsView(s.deps.DB, s.deps.Conversations, s.tracker, s.cache, s.identity.UID, s.deps.Logger)
	s.track(TopicConversations, v)
	s.conversations = v
	v.Start(s.ctx)
	return v
}

// Messages returns the view of one room after checking the user may open it.
func (s *Session) Messages(ctx context.Context, roomID string) (*views.MessagesView, error) {
	s.mu.Lock()
	if v, ok := s.rooms[roomID]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	room, err := s.deps.Messages.Authorize(ctx, s.identity.UID, roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if v, ok := s.rooms[room.ID]; ok {
		return v, nil
	}
	v := views.NewMessagesView(s.deps.DB, s.deps.Messages, s.tracker, s.cache, s.Author(), room.ID, s.deps.Logger)
	s.track(MessagesTopic(room.ID), v)
	s.rooms[room.ID] = v
	v.Start(s.ctx)
	return v, nil
}

func (s *Session) Videos() *views.CachedView[[]edu.Video] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.videos == nil && !s.closed {
		s.videos = startReference(s, TopicVideos, localcache.KeyVideos, s.deps.Catalog.FetchVideos)
	}
	return s.videos
}

func (s *Session) Classes() *views.CachedView[[]edu.Class] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.classes == nil && !s.closed {
		uid := s.identity.UID
		s.classes = startReference(s, TopicClasses, localcache.KeyClasses, func(ctx context.Context) ([]edu.Class, error) {
			return s.deps.Catalog.FetchClasses(ctx, uid)
		})
	}
	return s.classes
}

func (s *Session) Events() *views.CachedView[[]edu.Event] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil && !s.closed {
		s.events = startReference(s, TopicEvents, localcache.KeyEvents, s.deps.Catalog.FetchEvents)
	}
	return s.events
}

// startReference builds a read-through view over a one-shot fetch. Callers
// hold s.mu.
func startReference[T any](s *Session, topic string, key localcache.ResourceKey, fetch views.Fetcher[T]) *views.CachedView[T] {
	v := views.NewCachedView(views.CachedConfig[T]{
		Cache:   s.cache,
		Key:     key,
		TTL:     config.ReferenceCacheTTL,
		Fetch:   fetch,
		Timeout: config.WarmTaskTimeout,
		Logger:  s.deps.Logger,
	})
	s.track(topic, v)
	v.Start(s.ctx)
	return v
}

// Resource returns the view behind a live topic, creating it if needed.
// Message rooms are resolved through Messages. It reports false for an
// unknown topic or a closed session.
func (s *Session) Resource(topic string) (views.Resource, bool) {
	switch topic {
	case TopicFeed:
		if v := s.Feed(); v != nil {
			return v, true
		}
	case TopicGrades:
		if v := s.Grades(); v != nil {
			return v, true
		}
	case TopicConversations:
		if v := s.Conversations(); v != nil {
			return v, true
		}
	case TopicProfiles:
		if v := s.Profiles(); v != nil {
			return v, true
		}
	case TopicVideos:
		if v := s.Videos(); v != nil {
			return v, true
		}
	case TopicClasses:
		if v := s.Classes(); v != nil {
			return v, true
		}
	case TopicEvents:
		if v := s.Events(); v != nil {
			return v, true
		}
	}
	return nil, false
}

// Close clears the warmed flag and the role hint and closes every view.
// Remote writes still in flight finish on their own.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	resources := s.resources
	s.resources = nil
	s.role = nil
	s.feed, s.grades, s.conversations, s.profiles = nil, nil, nil, nil
	s.videos, s.classes, s.events = nil, nil, nil
	s.rooms = make(map[string]*views.MessagesView)
	s.mu.Unlock()

	s.ResetWarmed()
	s.cancel()
	for _, r := range resources {
		r.Close()
	}
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
