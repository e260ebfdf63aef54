package views

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/persistence/database"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

var errRemoteDown = errors.New("remote down")

// flakyDB fails every write while down is set. Reads and subscriptions
// pass through.
type flakyDB struct {
	realtime.Database
	down atomic.Bool
	// gate, if set, holds transactions until closed
	gate chan struct{}
}

func (f *flakyDB) Set(ctx context.Context, path string, value any) error {
	if f.down.Load() {
		return errRemoteDown
	}
	return f.Database.Set(ctx, path, value)
}

func (f *flakyDB) Update(ctx context.Context, path string, fields map[string]any) error {
	if f.down.Load() {
		return errRemoteDown
	}
	return f.Database.Update(ctx, path, fields)
}

func (f *flakyDB) Delete(ctx context.Context, path string) error {
	if f.down.Load() {
		return errRemoteDown
	}
	return f.Database.Delete(ctx, path)
}

func (f *flakyDB) Transaction(ctx context.Context, path string, fn realtime.TxFunc) (realtime.Snapshot, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.down.Load() {
		return realtime.Snapshot{}, errRemoteDown
	}
	return f.Database.Transaction(ctx, path, fn)
}

type fixture struct {
	db     *flakyDB
	store  *realtime.Store
	caches *localcache.Store
	logger *logging.ChanneledLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.NewNopLogger()
	dir := t.TempDir()
	db, err := database.Open(database.Options{Path: filepath.Join(dir, "rt.db")}, logger)
	require.NoError(t, err)
	store, err := realtime.NewStore(db.DB, logger, nil)
	require.NoError(t, err)
	caches := localcache.NewStore(localcache.PathOpener(filepath.Join(dir, "cache.db"), logger), logger, nil)
	t.Cleanup(func() {
		store.Close()
		db.Close()
		caches.Close()
	})
	return &fixture{db: &flakyDB{Database: store}, store: store, caches: caches, logger: logger}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting")
	}
}

const eventually = 5 * time.Second
const tick = 10 * time.Millisecond
