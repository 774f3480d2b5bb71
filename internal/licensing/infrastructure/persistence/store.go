// Package persistence implements the licensing repositories on the shared
// database layer. Queries are written once with '?' placeholders and rebound
// per driver, so the same code serves SQLite and PostgreSQL.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
)

type store struct {
	conn database.Connection
}

func (s store) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, s.conn)
}

func (s store) q(query string) string {
	return database.Rebind(s.conn.Driver(), query)
}

func (s store) t(at time.Time) any {
	return database.TimeValue(s.conn.Driver(), at)
}

func (s store) nt(at *time.Time) any {
	return database.NullTimeValue(s.conn.Driver(), at)
}

// storeError classifies driver errors: transient failures become
// ErrStoreUnavailable, everything else is wrapped with the operation name.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if database.IsTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stringOf(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
