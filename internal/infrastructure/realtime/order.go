package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
)

// OrderFunc computes the order value of one child of a collection. Returning
// false leaves the child without an order value; it then sorts before every
// ordered child and never matches an EndBefore cursor.
type OrderFunc func(key string, value json.RawMessage) (int64, bool)

type derivedOrder struct {
	child string
	fn    OrderFunc

	mu     sync.Mutex
	filled bool
}

// DeriveOrder makes queries on parent ordered by child use fn instead of the
// raw stored field. The value is kept in a column written with every child
// and filled for existing children on the first such query. Registering the
// same parent again is a no-op.
func (s *Store) DeriveOrder(parent, child string, fn OrderFunc) {
	parent, err := CleanPath(parent)
	if err != nil || fn == nil {
		return
	}
	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()
	if _, ok := s.orders[parent]; ok {
		return
	}
	s.orders[parent] = &derivedOrder{child: child, fn: fn}
}

func (s *Store) derivedOrderFor(parent string) *derivedOrder {
	s.ordersMu.RLock()
	defer s.ordersMu.RUnlock()
	return s.orders[parent]
}

// orderKeyFor returns the column value for a write at path.
func (s *Store) orderKeyFor(path string, data []byte) sql.NullInt64 {
	d := s.derivedOrderFor(parentOf(path))
	if d == nil {
		return sql.NullInt64{}
	}
	n, ok := d.fn(keyOf(path), data)
	return sql.NullInt64{Int64: n, Valid: ok}
}

// fillOrder computes the order column for children written before the
// order was registered. A failed fill is retried by the next query.
func (s *Store) fillOrder(ctx context.Context, parent string, d *derivedOrder) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.filled {
		return nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, value, version FROM nodes WHERE parent = ? AND order_key IS NULL`, parent)
	if err != nil {
		return fmt.Errorf("failed to scan %s for ordering: %w", parent, err)
	}
	type pending struct {
		path    string
		version int64
		key     int64
	}
	var updates []pending
	for rows.Next() {
		var (
			path, value string
			version     int64
		)
		if err := rows.Scan(&path, &value, &version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan node: %w", err)
		}
		if n, ok := d.fn(keyOf(path), json.RawMessage(value)); ok {
			updates = append(updates, pending{path: path, version: version, key: n})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to scan %s for ordering: %w", parent, err)
	}
	rows.Close()

	// a child rewritten meanwhile already carries its own value
	for _, u := range updates {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE nodes SET order_key = ? WHERE path = ? AND version = ?`, u.key, u.path, u.version); err != nil {
			return fmt.Errorf("failed to order %s: %w", u.path, err)
		}
	}
	if len(updates) > 0 {
		s.logger.Realtime().Info("Derived order filled", "parent", parent, "children", len(updates))
	}
	d.filled = true
	return nil
}
