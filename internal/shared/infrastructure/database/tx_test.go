package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lycebot/premium/internal/shared/application"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
	_ "github.com/lycebot/premium/internal/shared/infrastructure/database/sqlite"
)

func newTestConnection(t *testing.T) database.Connection {
	t.Helper()

	conn, err := database.NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "uow.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Exec(context.Background(), `CREATE TABLE items (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	return conn
}

func countItems(t *testing.T, conn database.Connection) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(context.Background(), `SELECT COUNT(*) FROM items`).Scan(&n))
	return n
}

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t)
	uow := database.NewUnitOfWork(conn)

	err := application.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		_, err := database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO items (id) VALUES (?)`, "a")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, conn))

	boom := errors.New("boom")
	err = application.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		if _, err := database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO items (id) VALUES (?)`, "b"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, countItems(t, conn))
}

func TestUnitOfWork_NestedReusesOuterTransaction(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t)
	uow := database.NewUnitOfWork(conn)

	boom := errors.New("outer failure")
	err := application.WithUnitOfWork(ctx, uow, func(outer context.Context) error {
		inner := application.WithUnitOfWork(outer, uow, func(txCtx context.Context) error {
			_, err := database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO items (id) VALUES (?)`, "nested")
			return err
		})
		require.NoError(t, inner)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countItems(t, conn), "inner commit must not escape the outer rollback")
}

func TestUnitOfWork_CommitWithoutTransaction(t *testing.T) {
	uow := database.NewUnitOfWork(newTestConnection(t))

	assert.ErrorIs(t, uow.Commit(context.Background()), database.ErrNoTransaction)
	assert.ErrorIs(t, uow.Rollback(context.Background()), database.ErrNoTransaction)
}

func TestExecutorFromContext(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t)
	uow := database.NewUnitOfWork(conn)

	assert.False(t, database.InTx(ctx))
	assert.Equal(t, conn, database.ExecutorFromContext(ctx, conn))

	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)
	assert.True(t, database.InTx(txCtx))
	assert.NotEqual(t, conn, database.ExecutorFromContext(txCtx, conn))
	require.NoError(t, uow.Rollback(txCtx))
}
