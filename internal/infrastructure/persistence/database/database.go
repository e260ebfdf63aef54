// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	Driver string
}

// Options selects the backing database. A non-empty TursoURL wins over Path.
type Options struct {
	Path            string
	TursoURL        string
	TursoAuthToken  string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DataSource resolves the driver name and DSN for the options.
func (o Options) DataSource() (driver, dsn string, err error) {
	if o.TursoURL != "" {
		dsn = o.TursoURL
		if o.TursoAuthToken != "" {
			dsn = fmt.Sprintf("%s?authToken=%s", o.TursoURL, o.TursoAuthToken)
		}
		return DriverLibSQL, dsn, nil
	}
	if o.Path == "" {
		return "", "", fmt.Errorf("database path is required")
	}
	if o.Path != ":memory:" && !strings.HasPrefix(o.Path, "file:") {
		if err := os.MkdirAll(filepath.Dir(o.Path), 0755); err != nil {
			return "", "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return DriverSQLite, o.Path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", nil
}

// Open resolves the options and connects.
func Open(opts Options, logger *logging.ChanneledLogger) (*DB, error) {
	driver, dsn, err := opts.DataSource()
	if err != nil {
		return nil, err
	}
	db, err := NewConnectionWithLogger(driver, dsn, logger)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// one writer avoids SQLITE_BUSY under concurrent transactions
		db.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return db, nil
}

// NewConnectionWithLogger establishes a new database connection for the specified driver with logging.
func NewConnectionWithLogger(driverName, dataSourceName string, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driverName", driverName)

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, err
	}

	if err = db.Ping(); err != nil {
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		db.Close()
		return nil, err
	}

	duration := time.Since(start)
	logger.Database().Info("Database connection established", "driverName", driverName, "duration", duration)
	CheckAndLogSlowQuery(logger, "DATABASE_CONNECTION", duration)

	return &DB{DB: db, Driver: driverName}, nil
}
