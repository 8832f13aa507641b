// Package database opens the relational database handle the rest of the
// scaffold consumes. The handle is constructed once at process start and
// passed around explicitly; there is no lazily-built global client.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Dialect identifiers as recorded in the migration journal.
const (
	DialectPostgres = "postgresql"
	DialectSQLite   = "sqlite"
	DialectLibSQL   = "libsql"
)

// DetectDriver infers the database type from a connection string.
// Recognized: postgres://, postgresql://, libsql://, sqlite://, file:,
// bare *.db / *.sqlite / *.sqlite3 paths and :memory:.
func DetectDriver(connStr string) string {
	lower := strings.ToLower(connStr)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "libsql://"):
		return "libsql"
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"):
		return "sqlite"
	case lower == ":memory:":
		return "sqlite"
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return "sqlite"
	default:
		return "postgres"
	}
}

// Dialect maps a detected driver name to its journal dialect identifier.
func Dialect(driverName string) string {
	switch driverName {
	case "postgres", "postgresql":
		return DialectPostgres
	case "libsql":
		return DialectLibSQL
	default:
		return DialectSQLite
	}
}

// dsn normalizes a connection string for the given driver. database/sql's
// sqlite driver wants a plain path, not the sqlite:// scheme.
func dsn(driverName, connStr string) string {
	if driverName == "sqlite" {
		return strings.TrimPrefix(connStr, "sqlite://")
	}
	return connStr
}

// sqlDriverName maps a detected driver to the name registered with
// database/sql by the imported driver packages.
func sqlDriverName(driverName string) string {
	switch driverName {
	case "postgresql":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	default:
		return driverName
	}
}

// Open connects to the database behind connStr and verifies the connection
// with a ping. The caller owns the returned handle and must Close it.
func Open(ctx context.Context, connStr string) (*sql.DB, error) {
	driverName := DetectDriver(connStr)

	db, err := sql.Open(sqlDriverName(driverName), dsn(driverName, connStr))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName, err)
	}

	if driverName == "sqlite" {
		// In-memory SQLite exists per connection; keep a single one so every
		// statement sees the same database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driverName, err)
	}

	return db, nil
}

// Redact hides the password portion of a connection string for logging.
func Redact(connStr string) string {
	at := strings.LastIndex(connStr, "@")
	scheme := strings.Index(connStr, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return connStr
	}
	creds := connStr[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return connStr[:scheme+3] + creds[:colon] + ":****" + connStr[at:]
	}
	return connStr
}
