package views

import (
	"context"
	"sync"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

// Decoder turns a delivered snapshot into the view's data.
type Decoder[T any] func(realtime.Snapshot) (T, error)

// LiveConfig configures a LiveView.
type LiveConfig[T any] struct {
	DB     realtime.Database
	Path   string
	Query  *realtime.Query
	Decode Decoder[T]

	// Cache is optional. With Slot set, the entry under Key is a map and
	// this view owns only Slot inside it.
	Cache *localcache.Cache
	Key   localcache.ResourceKey
	Slot  string
	TTL   time.Duration

	Logger *logging.ChanneledLogger
}

// LiveView is a read-through view kept current by a realtime subscription.
// Every authoritative delivery replaces the data wholesale and advances the
// epoch; optimistic changes are applied with Mutate and undone with Revert.
type LiveView[T any] struct {
	mu      sync.Mutex
	cacheMu sync.Mutex
	cfg     LiveConfig[T]
	state   State[T]
	epoch   uint64
	unsub   realtime.Unsubscribe
	closed  bool
	started bool

	ready     chan struct{}
	readyOnce sync.Once
	subs      listeners
	now       func() time.Time
}

func NewLiveView[T any](cfg LiveConfig[T]) *LiveView[T] {
	return &LiveView[T]{
		cfg:   cfg,
		state: State[T]{Loading: true},
		ready: make(chan struct{}),
		now:   time.Now,
	}
}

// Start serves the cached copy, if any, then subscribes. It is a no-op
// after the first call.
func (v *LiveView[T]) Start(ctx context.Context) {
	v.mu.Lock()
	if v.started || v.closed {
		v.mu.Unlock()
		return
	}
	v.started = true
	v.mu.Unlock()

	if data, ok := v.loadCache(ctx); ok {
		v.mu.Lock()
		if v.epoch == 0 && !v.closed {
			v.state.Data = data
			v.state.HasData = true
			v.state.FromCache = true
			v.state.Loading = false
			v.state.UpdatedAt = v.now()
		}
		v.mu.Unlock()
		v.subs.fire()
	}

	unsub := v.cfg.DB.Subscribe(v.cfg.Path, v.cfg.Query, v.deliver)
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		unsub()
		return
	}
	v.unsub = unsub
	v.mu.Unlock()
}

func (v *LiveView[T]) deliver(snap realtime.Snapshot) {
	data, err := v.cfg.Decode(snap)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.state.Loading = false
	v.state.UpdatedAt = v.now()
	if err != nil {
		v.state.setErr(err)
		v.mu.Unlock()
		if v.cfg.Logger != nil {
			v.cfg.Logger.Realtime().Warn("Live view decode failed", "path", v.cfg.Path, "error", err)
		}
		v.markReady()
		v.subs.fire()
		return
	}
	v.epoch++
	v.state.Data = data
	v.state.HasData = true
	v.state.FromCache = false
	v.state.setErr(nil)
	v.mu.Unlock()

	v.storeCache()
	v.markReady()
	v.subs.fire()
}

func (v *LiveView[T]) markReady() {
	v.readyOnce.Do(func() { close(v.ready) })
}

// Ready closes after the first delivery.
func (v *LiveView[T]) Ready() <-chan struct{} {
	return v.ready
}

// Mutate applies fn to the current data, patches the cache and returns the
// epoch the change was made in.
func (v *LiveView[T]) Mutate(fn func(T) T) uint64 {
	v.mu.Lock()
	v.state.Data = fn(v.state.Data)
	v.state.HasData = true
	v.state.UpdatedAt = v.now()
	epoch := v.epoch
	v.mu.Unlock()

	v.storeCache()
	v.subs.fire()
	return epoch
}

// Revert applies inverse only if no authoritative delivery has arrived since
// epoch. It reports whether it did.
func (v *LiveView[T]) Revert(epoch uint64, inverse func(T) T) bool {
	v.mu.Lock()
	if v.closed || v.epoch != epoch {
		v.mu.Unlock()
		return false
	}
	v.state.Data = inverse(v.state.Data)
	v.state.UpdatedAt = v.now()
	v.mu.Unlock()

	v.storeCache()
	v.subs.fire()
	return true
}

// Epoch counts authoritative deliveries.
func (v *LiveView[T]) Epoch() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.epoch
}

func (v *LiveView[T]) State() State[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *LiveView[T]) Snapshot() any { return v.State() }

func (v *LiveView[T]) OnChange(fn func()) func() { return v.subs.add(fn) }

// Close unsubscribes. Deliveries already in flight are dropped.
func (v *LiveView[T]) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	unsub := v.unsub
	v.unsub = nil
	v.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (v *LiveView[T]) loadCache(ctx context.Context) (T, bool) {
	var zero T
	c := v.cfg.Cache
	if c == nil {
		return zero, false
	}
	if v.cfg.Slot == "" {
		return localcache.Load[T](ctx, c, v.cfg.Key)
	}
	slots, ok := localcache.Load[map[string]T](ctx, c, v.cfg.Key)
	if !ok {
		return zero, false
	}
	data, ok := slots[v.cfg.Slot]
	return data, ok
}

// storeCache writes whatever data is current when the write happens.
func (v *LiveView[T]) storeCache() {
	c := v.cfg.Cache
	if c == nil {
		return
	}
	v.cacheMu.Lock()
	defer v.cacheMu.Unlock()

	v.mu.Lock()
	data := v.state.Data
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return
	}

	ctx := context.Background()
	if v.cfg.Slot == "" {
		c.Set(ctx, v.cfg.Key, data, v.cfg.TTL)
		return
	}

	// slot writers sharing one entry go through the entry lock
	localcache.Update(ctx, c, v.cfg.Key, v.cfg.TTL, func(slots map[string]T, _ bool) map[string]T {
		if slots == nil {
			slots = make(map[string]T)
		}
		slots[v.cfg.Slot] = data
		return slots
	})
}
