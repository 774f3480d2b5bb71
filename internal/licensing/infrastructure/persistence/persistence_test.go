package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
	_ "github.com/lycebot/premium/internal/shared/infrastructure/database/sqlite"
	"github.com/lycebot/premium/internal/shared/infrastructure/migrations"
)

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) database.Connection {
	t.Helper()

	ctx := context.Background()
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "premium.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, migrations.Run(ctx, conn))
	return conn
}

func newInactive(t *testing.T, key string, tier domain.Tier) *domain.License {
	t.Helper()
	plan, err := domain.DefaultCatalog().Plan(tier)
	require.NoError(t, err)
	return domain.NewLicense(key, plan, "buyer-1", "test", nil, baseTime)
}
