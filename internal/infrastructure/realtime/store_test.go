package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/persistence/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logging.NewNopLogger()
	db, err := database.Open(database.Options{Path: filepath.Join(t.TempDir(), "rt.db")}, logger)
	require.NoError(t, err)
	store, err := NewStore(db.DB, logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})
	return store
}

type post struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "posts/p1", want: "posts/p1"},
		{in: "/posts/p1/", want: "posts/p1"},
		{in: "", wantErr: true},
		{in: "posts//p1", wantErr: true},
		{in: "posts/p.1", wantErr: true},
		{in: "posts/$p", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanPath(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPath, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "posts/p1", post{Text: "hello", Timestamp: 1}))
	require.NoError(t, store.Set(ctx, "posts/p2", post{Text: "world", Timestamp: 2}))

	got, ok, err := GetAs[post](ctx, store, "posts/p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Text)

	snap, err := store.Get(ctx, "posts")
	require.NoError(t, err)
	assert.True(t, snap.Exists)
	require.Len(t, snap.Children, 2)
	assert.Equal(t, "p1", snap.Children[0].Key)

	require.NoError(t, store.Delete(ctx, "posts"))
	snap, err = store.Get(ctx, "posts/p2")
	require.NoError(t, err)
	assert.False(t, snap.Exists)
	assert.ErrorIs(t, snap.Decode(&got), ErrNotFound)
}

func TestDeleteDoesNotTouchSiblingsWithSharedPrefix(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "messages/dm_a_b/m1", map[string]string{"text": "x"}))
	require.NoError(t, store.Set(ctx, "messages/dm_a_bc/m1", map[string]string{"text": "y"}))

	require.NoError(t, store.Delete(ctx, "messages/dm_a_b"))

	snap, err := store.Get(ctx, "messages/dm_a_bc/m1")
	require.NoError(t, err)
	assert.True(t, snap.Exists)
}

func TestUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "posts/p1", map[string]any{"text": "hi", "retweets": 0}))
	require.NoError(t, store.Update(ctx, "posts/p1", map[string]any{
		"retweets":    1,
		"retweetedBy": map[string]bool{"u1": true},
		"text":        nil,
	}))

	doc, _, err := GetAs[map[string]any](ctx, store, "posts/p1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), doc["retweets"])
	assert.NotContains(t, doc, "text")
	assert.Contains(t, doc, "retweetedBy")
}

func TestTransactionConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	type counter struct {
		N int `json:"n"`
	}

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Transact(ctx, store, "counters/c1", func(c *counter, _ bool) error {
				c.N++
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, _, err := GetAs[counter](ctx, store, "counters/c1")
	require.NoError(t, err)
	assert.Equal(t, writers, got.N)
}

func TestTransactionAbort(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Transaction(ctx, "qr/s1", func(current json.RawMessage) (any, error) {
		return nil, ErrAbort
	})
	assert.ErrorIs(t, err, ErrAbort)

	snap, err := store.Get(ctx, "qr/s1")
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}

func TestTransactionCustomError(t *testing.T) {
	boom := errors.New("boom")
	_, err := newTestStore(t).Transaction(context.Background(), "a/b", func(json.RawMessage) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func seedPosts(t *testing.T, store *Store, stamps map[string]int64) {
	t.Helper()
	for id, ts := range stamps {
		require.NoError(t, store.Set(context.Background(), "posts/"+id, post{Text: id, Timestamp: ts}))
	}
}

func keys(children []Child) []string {
	out := make([]string, 0, len(children))
	for _, c := range children {
		out = append(out, c.Key)
	}
	return out
}

func TestQueryOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedPosts(t, store, map[string]int64{"a": 10, "b": 30, "c": 20, "d": 40, "e": 30})

	children, err := store.Query(ctx, "posts", Query{OrderByChild: "timestamp", LimitToLast: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "e", "d"}, keys(children))
}

func TestQueryEndBeforeBreaksTiesByKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedPosts(t, store, map[string]int64{"a": 10, "b": 30, "c": 20, "d": 40, "e": 30})

	children, err := store.Query(ctx, "posts", Query{
		OrderByChild: "timestamp",
		EndBefore:    &Cursor{Value: 30, Key: "e"},
		LimitToLast:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, keys(children))
}

func TestQueryUsesDerivedOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	// "at" is stored in seconds, "timestamp" in millis
	byStamp := func(_ string, value json.RawMessage) (int64, bool) {
		var doc struct {
			Timestamp int64 `json:"timestamp"`
			At        int64 `json:"at"`
		}
		if err := json.Unmarshal(value, &doc); err != nil {
			return 0, false
		}
		if doc.At > 0 {
			return doc.At * 1000, true
		}
		return doc.Timestamp, true
	}

	require.NoError(t, store.Set(ctx, "posts/a", json.RawMessage(`{"at":2}`)))
	store.DeriveOrder("posts", "timestamp", byStamp)
	store.DeriveOrder("posts", "timestamp", nil)
	require.NoError(t, store.Set(ctx, "posts/b", post{Timestamp: 1500}))
	require.NoError(t, store.Set(ctx, "posts/c", post{Timestamp: 3000}))
	_, err := store.Transaction(ctx, "posts/d", func(json.RawMessage) (any, error) {
		return json.RawMessage(`{"at":1}`), nil
	})
	require.NoError(t, err)

	children, err := store.Query(ctx, "posts", Query{OrderByChild: "timestamp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "a", "c"}, keys(children))

	children, err = store.Query(ctx, "posts", Query{
		OrderByChild: "timestamp",
		EndBefore:    &Cursor{Value: 2000, Key: "a"},
		LimitToLast:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys(children))

	// other children of the same parent still order by the raw field
	children, err = store.Query(ctx, "posts", Query{OrderByChild: "at"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d", "a"}, keys(children))
}

func TestQueryRejectsBadChild(t *testing.T) {
	_, err := newTestStore(t).Query(context.Background(), "posts", Query{OrderByChild: "a') OR 1=1 --"})
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func waitFor(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return Snapshot{}
	}
}

func TestSubscribeInitialAndChanges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Set(ctx, "profiles/u1", map[string]any{"role": "student"}))

	deliveries := make(chan Snapshot, 10)
	unsubscribe := store.Subscribe("profiles/u1", nil, func(s Snapshot) { deliveries <- s })
	defer unsubscribe()

	first := waitFor(t, deliveries)
	assert.JSONEq(t, `{"role":"student"}`, string(first.Value))

	require.NoError(t, store.Update(ctx, "profiles/u1", map[string]any{"role": "professor"}))
	var second Snapshot
	for {
		second = waitFor(t, deliveries)
		if string(second.Value) != string(first.Value) {
			break
		}
	}
	assert.JSONEq(t, `{"role":"professor"}`, string(second.Value))
}

func TestSubscribeQueryFiresOnChildWrite(t *testing.T) {
	store := newTestStore(t)

	deliveries := make(chan Snapshot, 10)
	unsubscribe := store.Subscribe("posts", &Query{OrderByChild: "timestamp", LimitToLast: 2}, func(s Snapshot) {
		deliveries <- s
	})
	defer unsubscribe()

	initial := waitFor(t, deliveries)
	assert.False(t, initial.Exists)

	seedPosts(t, store, map[string]int64{"a": 1})
	var snap Snapshot
	for !snap.Exists {
		snap = waitFor(t, deliveries)
	}
	assert.Equal(t, []string{"a"}, keys(snap.Children))
}

func TestUnsubscribeStopsDeliveries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	deliveries := make(chan Snapshot, 10)
	unsubscribe := store.Subscribe("grades/u1", nil, func(s Snapshot) { deliveries <- s })
	waitFor(t, deliveries)
	unsubscribe()
	unsubscribe()

	require.NoError(t, store.Set(ctx, "grades/u1/g1", map[string]any{"grade": 20}))
	select {
	case <-deliveries:
		t.Fatal("delivery after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRelated(t *testing.T) {
	assert.True(t, related("posts", "posts/p1"))
	assert.True(t, related("posts/p1", "posts"))
	assert.True(t, related("posts/p1", "posts/p1"))
	assert.False(t, related("posts/p1", "posts/p10"))
	assert.False(t, related("grades", "grades2/x"))
}
