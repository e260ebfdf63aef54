package views

import (
	"context"
	"sync"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/metrics"
)

// MutationFailure is reported when the remote half of an optimistic change fails.
type MutationFailure struct {
	Mutation string    `json:"mutation"`
	Target   string    `json:"target,omitempty"`
	Error    string    `json:"error"`
	Reverted bool      `json:"reverted"`
	At       time.Time `json:"at"`
}

// Tracker runs the remote half of optimistic changes. The local change has
// already been applied; on failure the revert func undoes it unless an
// authoritative delivery has superseded it.
type Tracker struct {
	logger    *logging.ChanneledLogger
	collector *metrics.Collector
	timeout   time.Duration

	mu        sync.Mutex
	onFailure func(MutationFailure)
	wg        sync.WaitGroup
}

func NewTracker(logger *logging.ChanneledLogger, collector *metrics.Collector, timeout time.Duration) *Tracker {
	return &Tracker{logger: logger, collector: collector, timeout: timeout}
}

// OnFailure sets the callback used to surface failures to the user.
func (t *Tracker) OnFailure(fn func(MutationFailure)) {
	t.mu.Lock()
	t.onFailure = fn
	t.mu.Unlock()
}

// Do starts remote in the background with its own deadline, detached from
// the caller's context. revert may be nil.
func (t *Tracker) Do(mutation, target string, revert func() bool, remote func(ctx context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx := context.Background()
		if t.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.timeout)
			defer cancel()
		}
		err := remote(ctx)
		if err == nil {
			return
		}

		reverted := false
		if revert != nil {
			reverted = revert()
		}
		t.collector.RecordMutationFailure(mutation, reverted)
		t.logger.WithOperation(logging.ChannelFeed, mutation).Warn("Optimistic mutation failed", "target", target, "reverted", reverted, "error", err)

		t.mu.Lock()
		fn := t.onFailure
		t.mu.Unlock()
		if fn != nil {
			fn(MutationFailure{Mutation: mutation, Target: target, Error: err.Error(), Reverted: reverted, At: time.Now()})
		}
	}()
}

// Wait blocks until every remote write started so far has settled.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
