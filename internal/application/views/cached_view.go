package views

import (
	"context"
	"sync"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

// Fetcher loads the authoritative value of a resource.
type Fetcher[T any] func(ctx context.Context) (T, error)

// CachedConfig configures a CachedView.
type CachedConfig[T any] struct {
	Cache   *localcache.Cache
	Key     localcache.ResourceKey
	TTL     time.Duration
	Fetch   Fetcher[T]
	Timeout time.Duration
	// Disabled views never read the cache nor fetch.
	Disabled bool
	Logger   *logging.ChanneledLogger
}

// CachedView is a read-through view over a one-shot fetch.
type CachedView[T any] struct {
	mu     sync.Mutex
	cfg    CachedConfig[T]
	state  State[T]
	gen    uint64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	subs   listeners
	now    func() time.Time
}

func NewCachedView[T any](cfg CachedConfig[T]) *CachedView[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &CachedView[T]{
		cfg:    cfg,
		state:  State[T]{Loading: !cfg.Disabled},
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

// Start serves the cached copy, if any, before returning, then fetches in
// the background. The returned channel closes when the fetch settles.
func (v *CachedView[T]) Start(ctx context.Context) <-chan struct{} {
	v.mu.Lock()
	if v.closed || v.cfg.Disabled {
		v.state.Loading = false
		v.mu.Unlock()
		return closedChan()
	}
	gen := v.gen
	cfg := v.cfg
	v.mu.Unlock()

	if cfg.Cache != nil {
		if data, ok := localcache.Load[T](ctx, cfg.Cache, cfg.Key); ok {
			v.mu.Lock()
			if gen == v.gen && !v.closed {
				v.state.Data = data
				v.state.HasData = true
				v.state.FromCache = true
				v.state.Loading = false
				v.state.UpdatedAt = v.now()
			}
			v.mu.Unlock()
			v.subs.fire()
		}
	}
	return v.fetch(gen, cfg)
}

// Refresh re-fetches without reading the cache.
func (v *CachedView[T]) Refresh() <-chan struct{} {
	v.mu.Lock()
	if v.closed || v.cfg.Disabled {
		v.mu.Unlock()
		return closedChan()
	}
	gen := v.gen
	cfg := v.cfg
	v.mu.Unlock()
	return v.fetch(gen, cfg)
}

// SetKey points the view at another resource. Results still in flight for
// the old key are discarded. A nil fetch keeps the current one.
func (v *CachedView[T]) SetKey(ctx context.Context, key localcache.ResourceKey, fetch Fetcher[T]) <-chan struct{} {
	v.mu.Lock()
	v.gen++
	v.cfg.Key = key
	if fetch != nil {
		v.cfg.Fetch = fetch
	}
	v.state = State[T]{Loading: true}
	v.mu.Unlock()
	return v.Start(ctx)
}

func (v *CachedView[T]) fetch(gen uint64, cfg CachedConfig[T]) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ctx := v.ctx
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		data, err := cfg.Fetch(ctx)

		v.mu.Lock()
		if v.closed || gen != v.gen {
			v.mu.Unlock()
			return
		}
		v.state.Loading = false
		v.state.UpdatedAt = v.now()
		if err != nil {
			v.state.setErr(err)
			v.mu.Unlock()
			if cfg.Logger != nil {
				cfg.Logger.Cache().Warn("View fetch failed", "resource", cfg.Key, "error", err)
			}
			v.subs.fire()
			return
		}
		v.state.Data = data
		v.state.HasData = true
		v.state.FromCache = false
		v.state.setErr(nil)
		v.mu.Unlock()

		if cfg.Cache != nil {
			cfg.Cache.Set(ctx, cfg.Key, data, cfg.TTL)
		}
		v.subs.fire()
	}()
	return done
}

// State returns a copy of the current state.
func (v *CachedView[T]) State() State[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *CachedView[T]) Snapshot() any { return v.State() }

func (v *CachedView[T]) OnChange(fn func()) func() { return v.subs.add(fn) }

// Close discards any result that arrives afterwards.
func (v *CachedView[T]) Close() {
	v.mu.Lock()
	v.closed = true
	v.gen++
	v.mu.Unlock()
	v.cancel()
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
