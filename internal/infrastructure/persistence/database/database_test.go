package database

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSourcePrefersTurso(t *testing.T) {
	driver, dsn, err := Options{Path: "ignored.db", TursoURL: "libsql://edu.turso.io", TursoAuthToken: "tok"}.DataSource()
	require.NoError(t, err)
	assert.Equal(t, DriverLibSQL, driver)
	assert.Equal(t, "libsql://edu.turso.io?authToken=tok", dsn)
}

func TestDataSourceRequiresPath(t *testing.T) {
	_, _, err := Options{}.DataSource()
	assert.Error(t, err)
}

func TestOpenCreatesSchemas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "edu.db")
	db, err := Open(Options{Path: path}, logging.NewNopLogger())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DriverSQLite, db.Driver)
	require.NoError(t, NewRealtimeTableCreator().CreateSchema(db.DB))
	require.NoError(t, NewLocalCacheTableCreator().CreateSchema(db.DB))
	// idempotent
	require.NoError(t, NewRealtimeTableCreator().CreateSchema(db.DB))

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	assert.Equal(t, "cache_entries,nodes", strings.Join(names, ","))
}

func TestCreateSchemaAddsMissingColumns(t *testing.T) {
	db, err := Open(Options{Path: filepath.Join(t.TempDir(), "old.db")}, logging.NewNopLogger())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE nodes (
		path TEXT PRIMARY KEY,
		parent TEXT NOT NULL,
		value TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO nodes (path, parent, value, updated_at) VALUES ('posts/p1', 'posts', '{}', 1)`)
	require.NoError(t, err)

	require.NoError(t, NewRealtimeTableCreator().CreateSchema(db.DB))
	require.NoError(t, NewRealtimeTableCreator().CreateSchema(db.DB))

	ok, err := hasColumn(db.DB, "nodes", "order_key")
	require.NoError(t, err)
	assert.True(t, ok)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM nodes WHERE order_key IS NULL`).Scan(&n))
	assert.Equal(t, 1, n)
}
