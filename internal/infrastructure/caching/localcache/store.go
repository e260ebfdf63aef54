package localcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/metrics"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/persistence/database"
)

// Opener returns a database handle with the cache schema in place.
type Opener func() (*sql.DB, error)

// PathOpener opens (or creates) the SQLite file at path.
func PathOpener(path string, logger *logging.ChanneledLogger) Opener {
	return func() (*sql.DB, error) {
		db, err := database.Open(database.Options{Path: path}, logger)
		if err != nil {
			return nil, err
		}
		if err := database.NewLocalCacheTableCreator().CreateSchema(db.DB); err != nil {
			db.Close()
			return nil, err
		}
		return db.DB, nil
	}
}

// Store owns the cache database. The handle is opened on first use;
// concurrent first uses share one open, and a failed open is retried by
// the next caller.
type Store struct {
	open    Opener
	logger  *logging.ChanneledLogger
	metrics *metrics.Collector
	now     func() time.Time

	mu sync.Mutex
	db *sql.DB

	locksMu sync.Mutex
	locks   map[string]*entryLock
}

// entryLock is dropped from the store once nobody holds or waits for it.
type entryLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore returns a store that opens lazily through opener.
func NewStore(opener Opener, logger *logging.ChanneledLogger, collector *metrics.Collector) *Store {
	return &Store{
		open:    opener,
		logger:  logger,
		metrics: collector,
		now:     time.Now,
		locks:   make(map[string]*entryLock),
	}
}

// WithClock replaces the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	start := time.Now()
	db, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	s.db = db
	s.logger.Cache().Info("Local cache opened", "duration", time.Since(start))
	return s.db, nil
}

// Close releases the database handle. The store may be reopened by later use.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Scope returns the cache bound to one namespace, usually a user id.
func (s *Store) Scope(namespace string) *Cache {
	return &Cache{store: s, scope: namespace}
}

// PurgeExpired removes every expired entry across scopes.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at < ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}
	purged, _ := res.RowsAffected()
	if purged > 0 {
		s.logger.Cache().Info("Purged expired cache entries", "count", purged)
	}
	return purged, nil
}

// Metadata describes one entry without its payload.
type Metadata struct {
	Key       ResourceKey `json:"key"`
	WrittenAt time.Time   `json:"writtenAt"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
	Size      int         `json:"size"`
	Expired   bool        `json:"expired"`
}

// Cache is a namespaced view of the store. Every operation fails soft:
// storage errors are logged and reported as a miss or a no-op.
type Cache struct {
	store *Store
	scope string
}

// Namespace returns the scope the cache is bound to.
func (c *Cache) Namespace() string {
	return c.scope
}

func (c *Cache) fail(operation string, key ResourceKey, err error) {
	c.store.metrics.RecordCacheOp(operation, "error")
	c.store.logger.Cache().Warn("Cache operation failed",
		"operation", operation,
		"scope", logging.MaskID(c.scope),
		"key", key.String(),
		"error", err)
}

// Get returns the stored value, or false when absent, expired or unreadable.
func (c *Cache) Get(ctx context.Context, key ResourceKey) (json.RawMessage, bool) {
	start := time.Now()
	db, err := c.store.handle()
	if err != nil {
		c.fail("get", key, err)
		return nil, false
	}

	var (
		data      string
		expiresAt sql.NullInt64
	)
	err = db.QueryRowContext(ctx,
		`SELECT data, expires_at FROM cache_entries WHERE scope = ? AND key = ?`,
		c.scope, key.String()).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.store.metrics.RecordCacheOp("get", "miss")
		c.store.logger.LogCacheOperation("get", c.scope, key.String(), false, time.Since(start))
		return nil, false
	}
	if err != nil {
		c.fail("get", key, err)
		return nil, false
	}

	if expiresAt.Valid && expired(c.store.now(), expiresAt.Int64) {
		c.dropExpired(ctx, key, expiresAt.Int64)
		c.store.metrics.RecordCacheOp("get", "expired")
		c.store.logger.LogCacheOperation("get", c.scope, key.String(), false, time.Since(start))
		return nil, false
	}

	c.store.metrics.RecordCacheOp("get", "hit")
	c.store.logger.LogCacheOperation("get", c.scope, key.String(), true, time.Since(start))
	return json.RawMessage(data), true
}

// Set overwrites the entry. A ttl of zero stores it without expiry.
func (c *Cache) Set(ctx context.Context, key ResourceKey, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.fail("set", key, err)
		return
	}
	db, err := c.store.handle()
	if err != nil {
		c.fail("set", key, err)
		return
	}

	now := c.store.now()
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO cache_entries (scope, key, data, written_at, expires_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET data = excluded.data, written_at = excluded.written_at, expires_at = excluded.expires_at`,
		c.scope, key.String(), string(data), now.UnixMilli(), expiresAt)
	if err != nil {
		c.fail("set", key, err)
		return
	}
	c.store.metrics.RecordCacheOp("set", "ok")
	c.store.logger.Cache().Debug("Cache operation", "operation", "set", "key", key.String(), "bytes", len(data), "ttl", ttl)
}

func (c *Cache) Delete(ctx context.Context, key ResourceKey) {
	db, err := c.store.handle()
	if err != nil {
		c.fail("delete", key, err)
		return
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM cache_entries WHERE scope = ? AND key = ?`, c.scope, key.String()); err != nil {
		c.fail("delete", key, err)
		return
	}
	c.store.metrics.RecordCacheOp("delete", "ok")
}

// dropExpired deletes the entry only if it still carries the expiry that was
// read, so a Set landing after that read survives.
func (c *Cache) dropExpired(ctx context.Context, key ResourceKey, expiresAt int64) {
	db, err := c.store.handle()
	if err != nil {
		c.fail("delete", key, err)
		return
	}
	if _, err := db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE scope = ? AND key = ? AND expires_at = ?`,
		c.scope, key.String(), expiresAt); err != nil {
		c.fail("delete", key, err)
	}
}

// expired reports whether an entry expiring at expiresAt (epoch millis) is
// no longer valid at now. The expiry instant itself is still valid.
func expired(now time.Time, expiresAt int64) bool {
	return now.UnixMilli() > expiresAt
}

// Lock serializes read-modify-write cycles on one entry of the scope. The
// returned func releases it.
func (c *Cache) Lock(key ResourceKey) func() {
	s := c.store
	id := c.scope + "/" + key.String()

	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &entryLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

// Clear removes every entry in the scope.
func (c *Cache) Clear(ctx context.Context) {
	db, err := c.store.handle()
	if err != nil {
		c.fail("clear", 0, err)
		return
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM cache_entries WHERE scope = ?`, c.scope); err != nil {
		c.fail("clear", 0, err)
		return
	}
	c.store.metrics.RecordCacheOp("clear", "ok")
	c.store.logger.Cache().Info("Cache scope cleared", "scope", logging.MaskID(c.scope))
}

// ListKeys returns the keys stored in the scope, expired ones included.
func (c *Cache) ListKeys(ctx context.Context) []ResourceKey {
	db, err := c.store.handle()
	if err != nil {
		c.fail("list", 0, err)
		return nil
	}
	rows, err := db.QueryContext(ctx, `SELECT key FROM cache_entries WHERE scope = ? ORDER BY key`, c.scope)
	if err != nil {
		c.fail("list", 0, err)
		return nil
	}
	defer rows.Close()

	var keys []ResourceKey
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			c.fail("list", 0, err)
			return nil
		}
		key, err := ParseResourceKey(name)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		c.fail("list", 0, err)
		return nil
	}
	return keys
}

// GetMetadata reports when the entry was written and when it expires.
// Expired entries are reported with Expired set and left in place.
func (c *Cache) GetMetadata(ctx context.Context, key ResourceKey) (Metadata, bool) {
	db, err := c.store.handle()
	if err != nil {
		c.fail("metadata", key, err)
		return Metadata{}, false
	}

	var (
		writtenAt int64
		expiresAt sql.NullInt64
		size      int
	)
	err = db.QueryRowContext(ctx,
		`SELECT written_at, expires_at, length(data) FROM cache_entries WHERE scope = ? AND key = ?`,
		c.scope, key.String()).Scan(&writtenAt, &expiresAt, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return Metadata{}, false
	}
	if err != nil {
		c.fail("metadata", key, err)
		return Metadata{}, false
	}

	meta := Metadata{Key: key, WrittenAt: time.UnixMilli(writtenAt), Size: size}
	if expiresAt.Valid {
		exp := time.UnixMilli(expiresAt.Int64)
		meta.ExpiresAt = &exp
		meta.Expired = expired(c.store.now(), expiresAt.Int64)
	}
	return meta, true
}

// Load decodes the entry into T. An undecodable entry is dropped.
func Load[T any](ctx context.Context, c *Cache, key ResourceKey) (T, bool) {
	var value T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return value, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		c.fail("decode", key, err)
		c.Delete(ctx, key)
		var zero T
		return zero, false
	}
	return value, true
}

// Save encodes value and stores it.
func Save[T any](ctx context.Context, c *Cache, key ResourceKey, value T, ttl time.Duration) {
	c.Set(ctx, key, value, ttl)
}

// Patch reads the entry, applies fn and writes the result back with ttl.
// Nothing is written when the entry is absent.
func Patch[T any](ctx context.Context, c *Cache, key ResourceKey, ttl time.Duration, fn func(T) T) {
	defer c.Lock(key)()
	value, ok := Load[T](ctx, c, key)
	if !ok {
		return
	}
	c.Set(ctx, key, fn(value), ttl)
}

// Update is Patch for entries that may be absent: fn receives the zero value
// and false when there is nothing stored, and its result is always written.
func Update[T any](ctx context.Context, c *Cache, key ResourceKey, ttl time.Duration, fn func(T, bool) T) {
	defer c.Lock(key)()
	value, ok := Load[T](ctx, c, key)
	c.Set(ctx, key, fn(value, ok), ttl)
}
