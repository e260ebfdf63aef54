package database

import (
	"database/sql"
	"fmt"
)

// TableCreator builds a schema from idempotent CREATE statements.
type TableCreator struct {
	tables  []string
	columns []column
	indexes []string
}

// column is added to an existing table created before it was introduced.
type column struct {
	table      string
	name       string
	definition string
}

// NewRealtimeTableCreator returns the schema of the authoritative document store.
func NewRealtimeTableCreator() *TableCreator {
	return &TableCreator{tables: realtimeTables, columns: realtimeColumns, indexes: realtimeIndexes}
}

// NewLocalCacheTableCreator returns the schema of the per-user local cache.
func NewLocalCacheTableCreator() *TableCreator {
	return &TableCreator{tables: localCacheTables, indexes: localCacheIndexes}
}

// CreateSchema executes all necessary queries to build the tables and indexes.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tc.tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, col := range tc.columns {
		exists, err := hasColumn(db, col.table, col.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, col.table, col.name, col.definition)); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", col.table, col.name, err)
		}
	}

	for _, indexSQL := range tc.indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

func hasColumn(db *sql.DB, table, name string) (bool, error) {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return false, fmt.Errorf("failed to inspect table %s: %w", table, err)
		}
		if col == name {
			return true, nil
		}
	}
	return false, rows.Err()
}

var realtimeTables = []string{
	`CREATE TABLE IF NOT EXISTS nodes (
		path TEXT PRIMARY KEY,
		parent TEXT NOT NULL,
		value TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at INTEGER NOT NULL,
		order_key INTEGER
	)`,
}

var realtimeColumns = []column{
	{table: "nodes", name: "order_key", definition: "INTEGER"},
}

var realtimeIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_parent_order ON nodes(parent, order_key)`,
}

var localCacheTables = []string{
	`CREATE TABLE IF NOT EXISTS cache_entries (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		data TEXT NOT NULL,
		written_at INTEGER NOT NULL,
		expires_at INTEGER,
		PRIMARY KEY (scope, key)
	)`,
}

var localCacheIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries(expires_at)`,
}
