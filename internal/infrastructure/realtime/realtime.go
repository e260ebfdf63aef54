// Package realtime implements the authoritative, path-addressed JSON document
// store that every client view subscribes to. Leaves hold JSON documents; a
// path whose direct children hold documents is a collection.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when decoding a snapshot with no value.
	ErrNotFound = errors.New("realtime: not found")
	// ErrAbort is returned by a transaction function to abandon the write.
	ErrAbort = errors.New("realtime: transaction aborted")
	// ErrMaxRetries is returned when a transaction keeps losing to concurrent writers.
	ErrMaxRetries = errors.New("realtime: transaction retries exhausted")
	// ErrInvalidPath is returned for empty segments or reserved characters.
	ErrInvalidPath = errors.New("realtime: invalid path")
	// ErrClosed is returned after the store has been closed.
	ErrClosed = errors.New("realtime: store closed")
)

// MaxTransactionRetries bounds the compare-and-swap loop of Transaction.
const MaxTransactionRetries = 25

// Child is one direct child of a collection.
type Child struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Decode unmarshals the child's value.
func (c Child) Decode(v any) error {
	return json.Unmarshal(c.Value, v)
}

// Snapshot is the state of a path at one instant.
type Snapshot struct {
	Path     string          `json:"path"`
	Exists   bool            `json:"exists"`
	Value    json.RawMessage `json:"value,omitempty"`
	Children []Child         `json:"children,omitempty"`
}

// Key returns the last segment of the snapshot path.
func (s Snapshot) Key() string {
	if i := strings.LastIndexByte(s.Path, '/'); i >= 0 {
		return s.Path[i+1:]
	}
	return s.Path
}

// Decode unmarshals the leaf value at the path.
func (s Snapshot) Decode(v any) error {
	if len(s.Value) == 0 {
		return ErrNotFound
	}
	return json.Unmarshal(s.Value, v)
}

// Cursor anchors a range query at (order value, key).
type Cursor struct {
	Value int64
	Key   string
}

// Query restricts a collection read. Results are always ascending by
// (OrderByChild, key); LimitToLast keeps the tail of that order.
type Query struct {
	OrderByChild string
	EndBefore    *Cursor
	LimitToLast  int
}

// TxFunc receives the current value (nil when absent) and returns the value
// to write. Returning a nil value deletes the path; returning ErrAbort
// abandons the transaction.
type TxFunc func(current json.RawMessage) (any, error)

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// Database is the remote store contract used by services and views.
type Database interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	Set(ctx context.Context, path string, value any) error
	Push(ctx context.Context, parent string, value any) (string, error)
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Transaction(ctx context.Context, path string, fn TxFunc) (Snapshot, error)
	Query(ctx context.Context, parent string, q Query) ([]Child, error)
	Subscribe(path string, q *Query, fn func(Snapshot)) Unsubscribe
	DeriveOrder(parent, child string, fn OrderFunc)
}

// Transact runs a typed transaction: fn mutates the decoded document (zero
// value and exists=false when absent). Returning ErrAbort skips the write.
func Transact[T any](ctx context.Context, db Database, path string, fn func(doc *T, exists bool) error) (T, error) {
	var result T
	_, err := db.Transaction(ctx, path, func(current json.RawMessage) (any, error) {
		var doc T
		exists := len(current) > 0
		if exists {
			if err := json.Unmarshal(current, &doc); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", path, err)
			}
		}
		if err := fn(&doc, exists); err != nil {
			return nil, err
		}
		result = doc
		return doc, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// GetAs reads and decodes the document at path. The bool is false when absent.
func GetAs[T any](ctx context.Context, db Database, path string) (T, bool, error) {
	var doc T
	snap, err := db.Get(ctx, path)
	if err != nil {
		return doc, false, err
	}
	if len(snap.Value) == 0 {
		return doc, false, nil
	}
	if err := snap.Decode(&doc); err != nil {
		return doc, false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return doc, true, nil
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// CleanPath validates and normalizes a path.
func CleanPath(path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			return "", fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
		if strings.ContainsAny(segment, ".#$[]") {
			return "", fmt.Errorf("%w: reserved character in %q", ErrInvalidPath, segment)
		}
	}
	return path, nil
}

func parentOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

func keyOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// related reports whether a write at written affects a listener at watched:
// the same path, a descendant or an ancestor.
func related(watched, written string) bool {
	if watched == written {
		return true
	}
	if strings.HasPrefix(written, watched+"/") {
		return true
	}
	return strings.HasPrefix(watched, written+"/")
}
