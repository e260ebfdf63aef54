package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/metrics"
	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

// WarmTarget is the session being warmed.
type WarmTarget interface {
	UID() string
	Cache() *localcache.Cache
	// MarkWarmed sets the warmed flag and reports whether this call set it.
	MarkWarmed() bool
}

type warmTask struct {
	key   localcache.ResourceKey
	ttl   time.Duration
	fetch func(ctx context.Context, uid string) (any, error)
}

// WarmingService prefetches the resources a fresh session needs into its
// cache scope so the first screens render from cache.
type WarmingService struct {
	feed      *FeedService
	catalog   *CatalogService
	grades    *GradeService
	lock      *caching.WarmingLock
	logger    *logging.ChanneledLogger
	collector *metrics.Collector

	taskTimeout time.Duration
	concurrency int
}

// NewWarmingService creates a new warming service
func NewWarmingService(feed *FeedService, catalog *CatalogService, grades *GradeService, lock *caching.WarmingLock, logger *logging.ChanneledLogger, collector *metrics.Collector) *WarmingService {
	return &WarmingService{
		feed:        feed,
		catalog:     catalog,
		grades:      grades,
		lock:        lock,
		logger:      logger,
		collector:   collector,
		taskTimeout: config.WarmTaskTimeout,
		concurrency: config.WarmConcurrency,
	}
}

func (ws *WarmingService) tasks() []warmTask {
	return []warmTask{
		{key: localcache.KeyFeed, ttl: config.FeedCacheTTL, fetch: func(ctx context.Context, _ string) (any, error) {
			return ws.feed.FetchLatest(ctx, config.FeedLiveWindow)
		}},
		{key: localcache.KeyVideos, ttl: config.ReferenceCacheTTL, fetch: func(ctx context.Context, _ string) (any, error) {
			return ws.catalog.FetchVideos(ctx)
		}},
		{key: localcache.KeyClasses, ttl: config.ReferenceCacheTTL, fetch: func(ctx context.Context, uid string) (any, error) {
			return ws.catalog.FetchClasses(ctx, uid)
		}},
		{key: localcache.KeyGrades, ttl: config.GradesCacheTTL, fetch: func(ctx context.Context, uid string) (any, error) {
			return ws.grades.Fetch(ctx, uid)
		}},
		{key: localcache.KeyEvents, ttl: config.ReferenceCacheTTL, fetch: func(ctx context.Context, _ string) (any, error) {
			return ws.catalog.FetchEvents(ctx)
		}},
	}
}

// Warm fetches every resource in parallel and writes each into the
// session's cache. It runs at most once per session and never concurrently
// for the same user. Failed tasks are logged and skipped; it reports
// whether a warm actually ran.
func (ws *WarmingService) Warm(ctx context.Context, target WarmTarget) bool {
	uid := target.UID()
	if uid == "" {
		return false
	}
	if !ws.lock.TryLock(uid) {
		ws.logger.WithUser(logging.ChannelCache, uid).Debug("Warm already running")
		return false
	}
	defer ws.lock.Unlock(uid)

	if !target.MarkWarmed() {
		return false
	}

	start := time.Now()
	cache := target.Cache()

	g, gctx := errgroup.WithContext(ctx)
	if ws.concurrency > 0 {
		g.SetLimit(ws.concurrency)
	}
	for _, task := range ws.tasks() {
		task := task
		g.Go(func() error {
			ws.runTask(gctx, cache, uid, task)
			return nil
		})
	}
	_ = g.Wait()

	duration := time.Since(start)
	ws.collector.RecordWarm(duration)
	ws.logger.WithUser(logging.ChannelCache, uid).Info("Cache warmed", "duration", duration)
	return true
}

func (ws *WarmingService) runTask(ctx context.Context, cache *localcache.Cache, uid string, task warmTask) {
	if ws.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ws.taskTimeout)
		defer cancel()
	}

	value, err := task.fetch(ctx, uid)
	if err != nil {
		ws.collector.RecordWarmTask(task.key.String(), false)
		ws.logger.WithUser(logging.ChannelCache, uid).Warn("Warm task failed", "resource", task.key, "error", err)
		return
	}
	cache.Set(ctx, task.key, value, task.ttl)
	ws.collector.RecordWarmTask(task.key.String(), true)
}
