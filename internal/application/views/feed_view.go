package views

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

// ErrLoadInProgress is returned by LoadMore when another call is running.
var ErrLoadInProgress = errors.New("load already in progress")

// CounterAdjuster moves a profile counter optimistically and returns the
// revert, or nil when there is nothing to adjust.
type CounterAdjuster func(uid string, delta int) (revert func() bool)

// FeedState is the merged feed as served to clients.
type FeedState struct {
	Posts       []edu.Post `json:"posts"`
	HasMore     bool       `json:"hasMore"`
	Loading     bool       `json:"loading"`
	LoadingMore bool       `json:"loadingMore"`
	FromCache   bool       `json:"fromCache"`
	Error       string     `json:"error,omitempty"`
}

// FeedView is the Efeed: a live window of the newest posts plus older pages
// loaded on demand.
type FeedView struct {
	live    *LiveView[[]edu.Post]
	feed    *services.FeedService
	social  *services.SocialService
	tracker *Tracker
	me      services.Author
	logger  *logging.ChanneledLogger

	window   int
	pageSize int

	mu          sync.Mutex
	older       []edu.Post
	hasMore     *bool
	loadingMore atomic.Bool
	counters    CounterAdjuster

	subs listeners
}

// FeedOptions carries what a FeedView needs beyond its services.
type FeedOptions struct {
	Me       services.Author
	Cache    *localcache.Cache
	Window   int
	PageSize int
}

func NewFeedView(db realtime.Database, feed *services.FeedService, social *services.SocialService, tracker *Tracker, logger *logging.ChanneledLogger, opts FeedOptions) *FeedView {
	if opts.Window <= 0 {
		opts.Window = config.FeedLiveWindow
	}
	if opts.PageSize <= 0 {
		opts.PageSize = config.FeedPageSize
	}
	v := &FeedView{
		feed:     feed,
		social:   social,
		tracker:  tracker,
		me:       opts.Me,
		logger:   logger,
		window:   opts.Window,
		pageSize: opts.PageSize,
	}
	v.live = NewLiveView(LiveConfig[[]edu.Post]{
		DB:     db,
		Path:   services.PostsPath,
		Query:  services.NewestQuery(opts.Window),
		Decode: feed.DecodeSnapshot,
		Cache:  opts.Cache,
		Key:    localcache.KeyFeed,
		TTL:    config.FeedCacheTTL,
		Logger: logger,
	})
	v.live.OnChange(v.subs.fire)
	return v
}

func (v *FeedView) Start(ctx context.Context) { v.live.Start(ctx) }

func (v *FeedView) Ready() <-chan struct{} { return v.live.Ready() }

// SetCounters installs the post-count adjuster used by Create and Delete.
func (v *FeedView) SetCounters(fn CounterAdjuster) {
	v.mu.Lock()
	v.counters = fn
	v.mu.Unlock()
}

// State merges the live window and the older pages.
func (v *FeedView) State() FeedState {
	live := v.live.State()
	v.mu.Lock()
	older := v.older
	hasMore := len(live.Data) >= v.window
	if v.hasMore != nil {
		hasMore = *v.hasMore
	}
	v.mu.Unlock()

	return FeedState{
		Posts:       MergePages(live.Data, older),
		HasMore:     hasMore,
		Loading:     live.Loading,
		LoadingMore: v.loadingMore.Load(),
		FromCache:   live.FromCache,
		Error:       live.Error,
	}
}

func (v *FeedView) Snapshot() any { return v.State() }

func (v *FeedView) OnChange(fn func()) func() { return v.subs.add(fn) }

func (v *FeedView) Close() { v.live.Close() }

// LoadMore fetches the page older than the oldest post shown. Concurrent
// calls are coalesced: only the first runs, the rest get ErrLoadInProgress.
func (v *FeedView) LoadMore(ctx context.Context) (int, error) {
	if !v.loadingMore.CompareAndSwap(false, true) {
		return 0, ErrLoadInProgress
	}
	defer v.loadingMore.Store(false)
	v.subs.fire()

	posts := v.State().Posts
	if len(posts) == 0 {
		v.setHasMore(false)
		return 0, nil
	}
	oldest := posts[len(posts)-1]
	page, hasMore, err := v.feed.FetchPage(ctx, realtime.Cursor{Value: oldest.Timestamp, Key: oldest.ID}, v.pageSize)
	if err != nil {
		v.logger.Feed().Warn("Load more failed", "anchor", oldest.ID, "error", err)
		v.subs.fire()
		return 0, err
	}

	v.mu.Lock()
	v.older = MergePages(v.older, page)
	v.hasMore = &hasMore
	v.mu.Unlock()
	v.subs.fire()
	return len(page), nil
}

func (v *FeedView) setHasMore(b bool) {
	v.mu.Lock()
	v.hasMore = &b
	v.mu.Unlock()
	v.subs.fire()
}

// find returns the post as currently shown.
func (v *FeedView) find(postID string) (edu.Post, bool) {
	for _, p := range v.State().Posts {
		if p.ID == postID {
			return p, true
		}
	}
	return edu.Post{}, false
}

func mapPost(posts []edu.Post, postID string, fn func(edu.Post) edu.Post) []edu.Post {
	out := make([]edu.Post, len(posts))
	for i, p := range posts {
		if p.ID == postID {
			p = fn(p)
		}
		out[i] = p
	}
	return out
}

func withoutPost(posts []edu.Post, postID string) []edu.Post {
	out := make([]edu.Post, 0, len(posts))
	for _, p := range posts {
		if p.ID != postID {
			out = append(out, p)
		}
	}
	return out
}

// patch applies fn to the post wherever it is shown and returns a revert
// that applies inverse the same way.
func (v *FeedView) patch(postID string, fn, inverse func(edu.Post) edu.Post) func() bool {
	epoch := v.live.Mutate(func(posts []edu.Post) []edu.Post { return mapPost(posts, postID, fn) })
	v.mu.Lock()
	inOlder := false
	for _, p := range v.older {
		if p.ID == postID {
			inOlder = true
			break
		}
	}
	if inOlder {
		v.older = mapPost(v.older, postID, fn)
	}
	v.mu.Unlock()
	if inOlder {
		v.subs.fire()
	}

	return func() bool {
		reverted := v.live.Revert(epoch, func(posts []edu.Post) []edu.Post { return mapPost(posts, postID, inverse) })
		if inOlder {
			v.mu.Lock()
			v.older = mapPost(v.older, postID, inverse)
			v.mu.Unlock()
			v.subs.fire()
			reverted = true
		}
		return reverted
	}
}

// React selects r for the current user. The returned post is the optimistic one.
func (v *FeedView) React(postID string, r edu.ReactionType) (edu.Post, error) {
	post, ok := v.find(postID)
	if !ok {
		return edu.Post{}, services.ErrNotFound
	}
	uid := v.me.UID
	prev := edu.HeldReaction(post, uid)
	apply := func(p edu.Post) edu.Post { return edu.ApplyReaction(p, uid, r) }
	inverse := func(p edu.Post) edu.Post { return edu.ApplyReaction(p, uid, edu.ReactionInverse(prev, r)) }

	revert := v.patch(postID, apply, inverse)
	v.tracker.Do("react", postID, revert, func(ctx context.Context) error {
		_, err := v.social.React(ctx, postID, uid, r)
		return err
	})
	return apply(post), nil
}

// ToggleRetweet flips the current user's retweet.
func (v *FeedView) ToggleRetweet(postID string) (edu.Post, error) {
	return v.toggle("retweet", postID, edu.ToggleRetweet, v.social.ToggleRetweet)
}

// ToggleBookmark flips the current user's bookmark.
func (v *FeedView) ToggleBookmark(postID string) (edu.Post, error) {
	return v.toggle("bookmark", postID, edu.ToggleBookmark, v.social.ToggleBookmark)
}

func (v *FeedView) toggle(name, postID string, flip func(edu.Post, string) edu.Post, remote func(context.Context, string, string) (edu.Post, error)) (edu.Post, error) {
	post, ok := v.find(postID)
	if !ok {
		return edu.Post{}, services.ErrNotFound
	}
	uid := v.me.UID
	fn := func(p edu.Post) edu.Post { return flip(p, uid) }

	revert := v.patch(postID, fn, fn)
	v.tracker.Do(name, postID, revert, func(ctx context.Context) error {
		_, err := remote(ctx, postID, uid)
		return err
	})
	return fn(post), nil
}

// Vote casts the current user's poll vote.
func (v *FeedView) Vote(postID string, option int) (edu.Post, error) {
	post, ok := v.find(postID)
	if !ok {
		return edu.Post{}, services.ErrNotFound
	}
	uid := v.me.UID
	voted, err := edu.Vote(post, uid, option)
	if err != nil {
		return edu.Post{}, err
	}
	apply := func(p edu.Post) edu.Post {
		next, err := edu.Vote(p, uid, option)
		if err != nil {
			return p
		}
		return next
	}
	inverse := func(p edu.Post) edu.Post { return edu.Unvote(p, uid) }

	revert := v.patch(postID, apply, inverse)
	v.tracker.Do("vote", postID, revert, func(ctx context.Context) error {
		_, err := v.social.Vote(ctx, postID, uid, option)
		return err
	})
	return voted, nil
}

// Create publishes a new post, showing it immediately.
func (v *FeedView) Create(in edu.NewPostInput) (edu.Post, error) {
	post, err := v.feed.BuildPost(v.me, in, security.GenerateULID())
	if err != nil {
		return edu.Post{}, err
	}

	epoch := v.live.Mutate(func(posts []edu.Post) []edu.Post {
		out := append([]edu.Post{post}, withoutPost(posts, post.ID)...)
		edu.SortPosts(out)
		return out
	})
	countRevert := v.adjustCount(post.AuthorID, 1)

	revert := func() bool {
		reverted := v.live.Revert(epoch, func(posts []edu.Post) []edu.Post { return withoutPost(posts, post.ID) })
		if countRevert != nil {
			countRevert()
		}
		return reverted
	}
	v.tracker.Do("create_post", post.ID, revert, func(ctx context.Context) error {
		return v.feed.PublishPost(ctx, post)
	})
	return post, nil
}

// Delete removes one of the current user's posts.
func (v *FeedView) Delete(postID string) error {
	post, ok := v.find(postID)
	if !ok {
		return services.ErrNotFound
	}
	if post.AuthorID != v.me.UID {
		return services.ErrForbidden
	}

	epoch := v.live.Mutate(func(posts []edu.Post) []edu.Post { return withoutPost(posts, postID) })
	v.mu.Lock()
	older := v.older
	v.older = withoutPost(older, postID)
	removedOlder := len(v.older) != len(older)
	v.mu.Unlock()
	countRevert := v.adjustCount(post.AuthorID, -1)
	v.subs.fire()

	revert := func() bool {
		restore := func(posts []edu.Post) []edu.Post {
			out := append(withoutPost(posts, postID), post)
			edu.SortPosts(out)
			return out
		}
		reverted := v.live.Revert(epoch, restore)
		if removedOlder {
			v.mu.Lock()
			v.older = restore(v.older)
			v.mu.Unlock()
			v.subs.fire()
			reverted = true
		}
		if countRevert != nil {
			countRevert()
		}
		return reverted
	}
	v.tracker.Do("delete_post", postID, revert, func(ctx context.Context) error {
		return v.feed.RemovePost(ctx, v.me.UID, postID)
	})
	return nil
}

func (v *FeedView) adjustCount(uid string, delta int) func() bool {
	v.mu.Lock()
	fn := v.counters
	v.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(uid, delta)
}
