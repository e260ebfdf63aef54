package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const subscriptionReadTimeout = 10 * time.Second

type subscription struct {
	id     uint64
	path   string
	query  *Query
	fn     func(Snapshot)
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func (sub *subscription) stop() {
	sub.once.Do(func() {
		sub.closed.Store(true)
		close(sub.done)
	})
}

func (sub *subscription) poke() {
	select {
	case sub.signal <- struct{}{}:
	default:
		// a delivery is already pending and will read the latest state
	}
}

// Subscribe calls fn with the current value of path (or of the query over
// its children) and again after every write at, below or above path.
// Deliveries for one subscription never overlap; bursts of writes coalesce
// into one delivery of the latest state.
func (s *Store) Subscribe(path string, q *Query, fn func(Snapshot)) Unsubscribe {
	clean, err := CleanPath(path)
	if err != nil {
		s.logger.Realtime().Error("Rejected subscription", "path", path, "error", err)
		return func() {}
	}
	if s.ctx.Err() != nil {
		return func() {}
	}

	sub := &subscription{
		path:   clean,
		query:  q,
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	s.subsMu.Lock()
	s.nextID++
	sub.id = s.nextID
	s.subs[sub.id] = sub
	s.subsMu.Unlock()

	s.metrics.AddSubscriptions(1)
	s.logger.Realtime().Debug("Subscription opened", "path", clean, "id", sub.id)

	sub.poke()
	s.wg.Add(1)
	go s.deliver(sub)

	return func() {
		s.subsMu.Lock()
		_, registered := s.subs[sub.id]
		delete(s.subs, sub.id)
		s.subsMu.Unlock()
		if registered {
			s.metrics.AddSubscriptions(-1)
			s.logger.Realtime().Debug("Subscription closed", "path", clean, "id", sub.id)
		}
		sub.stop()
	}
}

func (s *Store) deliver(sub *subscription) {
	defer s.wg.Done()
	for {
		select {
		case <-sub.done:
			return
		case <-s.ctx.Done():
			return
		case <-sub.signal:
		}

		snap, err := s.read(sub)
		if err != nil {
			s.logger.Realtime().Warn("Subscription read failed", "path", sub.path, "error", err)
			continue
		}
		if sub.closed.Load() {
			return
		}
		sub.fn(snap)
	}
}

func (s *Store) read(sub *subscription) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(s.ctx, subscriptionReadTimeout)
	defer cancel()

	if sub.query == nil {
		return s.Get(ctx, sub.path)
	}
	children, err := s.Query(ctx, sub.path, *sub.query)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Path: sub.path, Exists: len(children) > 0, Children: children}, nil
}

func (s *Store) notify(written string) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		if related(sub.path, written) {
			sub.poke()
		}
	}
}
