// Package database hides the difference between the PostgreSQL and SQLite
// license stores behind one small executor interface. Repositories write
// queries with '?' placeholders and pass them through Rebind.
package database

import (
	"context"
	"strings"
)

// Driver names a supported backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// DetectDriver picks the backend for a DATABASE_URL. An empty URL selects
// the local SQLite store, postgres:// and postgresql:// select PostgreSQL,
// and anything else is taken as a SQLite path or DSN.
func DetectDriver(url string) Driver {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Row is satisfied by *sql.Row and pgx.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows is satisfied by *sql.Rows; the postgres package adapts pgx.Rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result reports how many rows a statement touched. Inserts that need a
// generated id use RETURNING, which both backends support.
type Result interface {
	RowsAffected() (int64, error)
}

// Executor runs queries. Connections and transactions both implement it,
// and ExecutorFromContext picks whichever is current.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Transaction is an Executor that must be committed or rolled back.
// Rollback after Commit is a no-op.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is an open license store.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Ping(ctx context.Context) error
	Close() error
	Driver() Driver
}
