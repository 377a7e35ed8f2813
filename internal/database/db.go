// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/vinovest/sqlx"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultSQLiteDSN is used when no DSN is configured.
const DefaultSQLiteDSN = "./data/votemail.db"

// sqlitePragmas are applied by the driver to every new connection.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"cache_size(2000)",
}

// Open connects to the database and applies pending migrations.
// An unreachable store is reported as an error; callers treat it as fatal.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "", DriverSQLite:
		return openSQLite(dsn)
	case DriverPostgres:
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func openSQLite(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}

	memory := isMemoryDSN(dsn)

	// Create directory for file-based databases
	if !memory {
		path := dsn
		if i := strings.Index(path, "?"); i >= 0 {
			path = path[:i]
		}
		path = strings.TrimPrefix(path, "file:")
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, err
		}
	}

	conn, err := sqlx.Open(DriverSQLite, addDefaultParams(dsn))
	if err != nil {
		return nil, err
	}

	if memory {
		// Every connection to :memory: is its own database.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
	}
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := RunMigrations(conn.DB, DriverSQLite); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func openPostgres(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	conn, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := RunMigrations(conn.DB, DriverPostgres); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func isMemoryDSN(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// addDefaultParams adds the transaction lock mode and connection pragmas
// unless the DSN already sets them.
func addDefaultParams(dsn string) string {
	params := url.Values{}
	if !strings.Contains(dsn, "_txlock") {
		params.Set("_txlock", "immediate")
	}
	for _, pragma := range sqlitePragmas {
		name := pragma[:strings.Index(pragma, "(")]
		if !strings.Contains(dsn, name) {
			params.Add("_pragma", pragma)
		}
	}

	if len(params) == 0 {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params.Encode()
}
