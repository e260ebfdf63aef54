package cleanup

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

func TestRunOnceIsolatesFailures(t *testing.T) {
	var out bytes.Buffer
	w := NewWorker(&Config{CleanupInterval: time.Hour, VerboseReporting: true}, logging.NewNopLogger(), NewReporter(&out),
		Task{Name: "cache", Run: func(context.Context) (int64, error) { return 3, nil }},
		Task{Name: "broken", Run: func(context.Context) (int64, error) { return 0, errors.New("db locked") }},
		Task{Name: "panics", Run: func(context.Context) (int64, error) { panic("boom") }},
		Task{Name: "qr", Run: func(context.Context) (int64, error) { return 0, nil }},
	)

	results := w.RunOnce(context.Background())
	require.Len(t, results, 4)
	assert.Equal(t, int64(3), results[0].Removed)
	assert.Error(t, results[1].Err)
	assert.ErrorContains(t, results[2].Err, "panic")
	assert.NoError(t, results[3].Err)
	assert.Contains(t, out.String(), "cache:")
	assert.Contains(t, out.String(), "PERIODIC CLEANUP")
}

func TestStartStopsOnCancel(t *testing.T) {
	ran := make(chan struct{}, 10)
	w := NewWorker(&Config{CleanupInterval: 5 * time.Millisecond}, logging.NewNopLogger(), nil,
		Task{Name: "tick", Run: func(context.Context) (int64, error) {
			ran <- struct{}{}
			return 0, nil
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	<-ran
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
