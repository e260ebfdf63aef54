package realtime

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
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
)

// Store is the SQL-backed Database. Change notifications are delivered to
// subscribers registered in this process.
type Store struct {
	db      *sql.DB
	logger  *logging.ChanneledLogger
	metrics *metrics.Collector
	now     func() time.Time

	subsMu sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64

	ordersMu sync.RWMutex
	orders   map[string]*derivedOrder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStore creates the schema on db and returns a ready store.
func NewStore(db *sql.DB, logger *logging.ChanneledLogger, collector *metrics.Collector) (*Store, error) {
	if err := database.NewRealtimeTableCreator().CreateSchema(db); err != nil {
		return nil, fmt.Errorf("failed to create realtime schema: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		db:      db,
		logger:  logger,
		metrics: collector,
		now:     time.Now,
		subs:    make(map[uint64]*subscription),
		orders:  make(map[string]*derivedOrder),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Close stops every subscription. The underlying *sql.DB is owned by the caller.
func (s *Store) Close() {
	s.cancel()
	s.subsMu.Lock()
	for id, sub := range s.subs {
		sub.stop()
		delete(s.subs, id)
	}
	s.subsMu.Unlock()
	s.wg.Wait()
}

func (s *Store) Get(ctx context.Context, path string) (Snapshot, error) {
	path, err := CleanPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	start := time.Now()
	snap := Snapshot{Path: path}

	var value string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM nodes WHERE path = ?`, path).Scan(&value)
	switch {
	case err == nil:
		snap.Exists = true
		snap.Value = json.RawMessage(value)
	case errors.Is(err, sql.ErrNoRows):
	default:
		return Snapshot{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	children, err := s.children(ctx, path)
	if err != nil {
		return Snapshot{}, err
	}
	if len(children) > 0 {
		snap.Exists = true
		snap.Children = children
	}

	database.CheckAndLogSlowQuery(s.logger, "GET "+path, time.Since(start))
	return snap, nil
}

func (s *Store) children(ctx context.Context, parent string) ([]Child, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, value FROM nodes WHERE parent = ? ORDER BY path`, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", parent, err)
	}
	defer rows.Close()
	return scanChildren(rows)
}

func scanChildren(rows *sql.Rows) ([]Child, error) {
	var children []Child
	for rows.Next() {
		var path, value string
		if err := rows.Scan(&path, &value); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		children = append(children, Child{Key: keyOf(path), Value: json.RawMessage(value)})
	}
	return children, rows.Err()
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	if value == nil {
		return s.Delete(ctx, path)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if string(data) == "null" {
		return s.Delete(ctx, path)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes (path, parent, value, version, updated_at, order_key) VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(path) DO UPDATE SET value = excluded.value, version = nodes.version + 1,
			updated_at = excluded.updated_at, order_key = excluded.order_key`,
		path, parentOf(path), string(data), s.now().UnixMilli(), s.orderKeyFor(path, data))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.logger.Realtime().Debug("Node written", "path", path, "bytes", len(data))
	s.notify(path)
	return nil
}

// Push stores value under a new time-ordered key and returns the key.
func (s *Store) Push(ctx context.Context, parent string, value any) (string, error) {
	parent, err := CleanPath(parent)
	if err != nil {
		return "", err
	}
	key := security.GenerateULID()
	if err := s.Set(ctx, Join(parent, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Update merges top-level fields into the object at path. A nil field value
// removes the field.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}

	var value string
	doc := make(map[string]json.RawMessage)
	err = s.db.QueryRowContext(ctx, `SELECT value FROM nodes WHERE path = ?`, path).Scan(&value)
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(value), &doc); err != nil {
			return fmt.Errorf("failed to update %s: value is not an object: %w", path, err)
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for field, v := range fields {
		if v == nil {
			delete(doc, field)
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode field %s of %s: %w", field, path, err)
		}
		doc[field] = data
	}
	if len(doc) == 0 {
		return s.Delete(ctx, path)
	}
	return s.Set(ctx, path, doc)
}

// Delete removes the path and everything below it.
func (s *Store) Delete(ctx context.Context, path string) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	prefix := path + "/"
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM nodes WHERE path = ? OR substr(path, 1, ?) = ?`,
		path, len(prefix), prefix)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	s.logger.Realtime().Debug("Node deleted", "path", path)
	s.notify(path)
	return nil
}

// Transaction applies fn with optimistic concurrency: the write only lands if
// the version read is still current, otherwise fn is re-run on the fresh value.
func (s *Store) Transaction(ctx context.Context, path string, fn TxFunc) (Snapshot, error) {
	path, err := CleanPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	start := time.Now()

	for attempt := 0; attempt < MaxTransactionRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, err
		}

		var (
			current json.RawMessage
			version int64
			raw     string
		)
		err := s.db.QueryRowContext(ctx, `SELECT value, version FROM nodes WHERE path = ?`, path).Scan(&raw, &version)
		switch {
		case err == nil:
			current = json.RawMessage(raw)
		case errors.Is(err, sql.ErrNoRows):
		default:
			return Snapshot{}, fmt.Errorf("failed to read %s: %w", path, err)
		}

		next, err := fn(current)
		if err != nil {
			if errors.Is(err, ErrAbort) {
				s.metrics.RecordTxOutcome("aborted")
			} else {
				s.metrics.RecordTxOutcome("failed")
			}
			return Snapshot{}, err
		}

		committed, snap, err := s.compareAndSwap(ctx, path, current != nil, version, next)
		if err != nil {
			return Snapshot{}, err
		}
		if committed {
			s.metrics.RecordTxOutcome("committed")
			database.CheckAndLogSlowQuery(s.logger, "TX_"+path, time.Since(start))
			s.notify(path)
			return snap, nil
		}

		s.metrics.RecordTxRetry()
		s.logger.Realtime().Debug("Transaction conflict, retrying", "path", path, "attempt", attempt+1)
	}

	s.metrics.RecordTxOutcome("exhausted")
	s.logger.Realtime().Warn("Transaction retries exhausted", "path", path)
	return Snapshot{}, fmt.Errorf("%w: %s", ErrMaxRetries, path)
}

func (s *Store) compareAndSwap(ctx context.Context, path string, existed bool, version int64, next any) (bool, Snapshot, error) {
	snap := Snapshot{Path: path}

	var data []byte
	if next != nil {
		var err error
		data, err = json.Marshal(next)
		if err != nil {
			return false, snap, fmt.Errorf("failed to encode %s: %w", path, err)
		}
		if string(data) == "null" {
			data = nil
		}
	}

	var (
		res sql.Result
		err error
	)
	switch {
	case data == nil && !existed:
		return true, snap, nil
	case data == nil:
		res, err = s.db.ExecContext(ctx, `DELETE FROM nodes WHERE path = ? AND version = ?`, path, version)
	case existed:
		res, err = s.db.ExecContext(ctx,
			`UPDATE nodes SET value = ?, version = version + 1, updated_at = ?, order_key = ? WHERE path = ? AND version = ?`,
			string(data), s.now().UnixMilli(), s.orderKeyFor(path, data), path, version)
	default:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO nodes (path, parent, value, version, updated_at, order_key) VALUES (?, ?, ?, 1, ?, ?) ON CONFLICT(path) DO NOTHING`,
			path, parentOf(path), string(data), s.now().UnixMilli(), s.orderKeyFor(path, data))
	}
	if err != nil {
		return false, snap, fmt.Errorf("failed to commit %s: %w", path, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, snap, fmt.Errorf("failed to commit %s: %w", path, err)
	}
	if affected == 0 {
		return false, snap, nil
	}
	if data != nil {
		snap.Exists = true
		snap.Value = json.RawMessage(data)
	}
	return true, snap, nil
}
