package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/persistence/database"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

func newTestDB(t *testing.T) *realtime.Store {
	t.Helper()
	logger := logging.NewNopLogger()
	db, err := database.Open(database.Options{Path: filepath.Join(t.TempDir(), "rt.db")}, logger)
	require.NoError(t, err)
	store, err := realtime.NewStore(db.DB, logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})
	return store
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.UnixMilli(1_700_000_000_000)}
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

func seedProfile(t *testing.T, db realtime.Database, p edu.Profile) {
	t.Helper()
	require.NoError(t, db.Set(context.Background(), ProfilePath(p.UID), p))
}

func readProfile(t *testing.T, db realtime.Database, uid string) edu.Profile {
	t.Helper()
	p, ok, err := realtime.GetAs[edu.Profile](context.Background(), db, ProfilePath(uid))
	require.NoError(t, err)
	require.True(t, ok)
	return p
}
