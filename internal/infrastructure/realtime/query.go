package realtime

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/persistence/database"
)

var childNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Query reads the direct children of parent ordered by (OrderByChild, key)
// ascending. EndBefore keeps only items strictly before the cursor and
// LimitToLast keeps the last n of what remains. An order registered with
// DeriveOrder replaces the raw field.
func (s *Store) Query(ctx context.Context, parent string, q Query) ([]Child, error) {
	parent, err := CleanPath(parent)
	if err != nil {
		return nil, err
	}
	if q.OrderByChild != "" && !childNamePattern.MatchString(q.OrderByChild) {
		return nil, fmt.Errorf("%w: order child %q", ErrInvalidPath, q.OrderByChild)
	}
	start := time.Now()

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT path, value FROM nodes WHERE parent = ?`)
	args = append(args, parent)

	// derived orders compare a stored column; raw orders the JSON field
	var orderExpr string
	var orderArgs []any
	switch d := s.derivedOrderFor(parent); {
	case q.OrderByChild == "":
	case d != nil && d.child == q.OrderByChild:
		if err := s.fillOrder(ctx, parent, d); err != nil {
			return nil, err
		}
		orderExpr = "order_key"
	default:
		orderExpr = "json_extract(value, ?)"
		orderArgs = []any{"$." + q.OrderByChild}
	}

	if q.EndBefore != nil {
		cursorPath := Join(parent, q.EndBefore.Key)
		if orderExpr == "" {
			sb.WriteString(` AND path < ?`)
			args = append(args, cursorPath)
		} else {
			sb.WriteString(` AND (` + orderExpr + ` < ? OR (` + orderExpr + ` = ? AND path < ?))`)
			args = append(args, orderArgs...)
			args = append(args, q.EndBefore.Value)
			args = append(args, orderArgs...)
			args = append(args, q.EndBefore.Value, cursorPath)
		}
	}

	// newest first so LIMIT keeps the tail, reversed below
	sb.WriteString(` ORDER BY `)
	if orderExpr != "" {
		sb.WriteString(orderExpr + ` DESC, path DESC`)
		args = append(args, orderArgs...)
	} else {
		sb.WriteString(`path DESC`)
	}
	if q.LimitToLast > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.LimitToLast)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", parent, err)
	}
	defer rows.Close()

	children, err := scanChildren(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(children)-1; i < j; i, j = i+1, j-1 {
		children[i], children[j] = children[j], children[i]
	}

	database.CheckAndLogSlowQuery(s.logger, "QUERY_"+parent, time.Since(start))
	return children, nil
}
