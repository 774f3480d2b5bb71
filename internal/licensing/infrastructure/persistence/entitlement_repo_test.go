package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lycebot/premium/internal/licensing/domain"
)

func TestEntitlementRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewEntitlementRepository(setupTestDB(t))

	_, err := repo.Get(ctx, "guild-1")
	assert.ErrorIs(t, err, domain.ErrEntitlementNotFound)

	plan, err := domain.DefaultCatalog().Plan(domain.TierYearly)
	require.NoError(t, err)
	exp := baseTime.AddDate(0, 0, 365)
	require.NoError(t, repo.Upsert(ctx, domain.NewEntitlement("guild-1", plan, &exp, baseTime)))

	got, err := repo.Get(ctx, "guild-1")
	require.NoError(t, err)
	assert.True(t, got.IsPremium)
	assert.Equal(t, domain.TierYearly, got.Tier)
	assert.Equal(t, plan.Features, got.Features)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, exp.Equal(*got.ExpiresAt))
	require.NotNil(t, got.ActivatedAt)
	assert.True(t, baseTime.Equal(*got.ActivatedAt))

	lifetime, err := domain.DefaultCatalog().Plan(domain.TierLifetime)
	require.NoError(t, err)
	later := baseTime.Add(time.Hour)
	require.NoError(t, repo.Upsert(ctx, domain.NewEntitlement("guild-1", lifetime, nil, later)))

	got, err = repo.Get(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierLifetime, got.Tier)
	assert.Nil(t, got.ExpiresAt)
	assert.Equal(t, lifetime.Features, got.Features)
}

func TestEntitlementRepository_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewEntitlementRepository(setupTestDB(t))

	plan, err := domain.DefaultCatalog().Plan(domain.TierMonthly)
	require.NoError(t, err)
	exp := baseTime.AddDate(0, 0, 30)
	require.NoError(t, repo.Upsert(ctx, domain.NewEntitlement("guild-1", plan, &exp, baseTime)))

	at := baseTime.Add(time.Hour)
	changed, err := repo.Clear(ctx, "guild-1", at)
	require.NoError(t, err)
	assert.True(t, changed)

	first, err := repo.Get(ctx, "guild-1")
	require.NoError(t, err)
	assert.False(t, first.IsPremium)
	require.NotNil(t, first.ExpiresAt)
	assert.True(t, at.Equal(*first.ExpiresAt))

	changed, err = repo.Clear(ctx, "guild-1", at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	second, err := repo.Get(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	changed, err = repo.Clear(ctx, "guild-missing", at)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestEntitlementRepository_ListExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewEntitlementRepository(setupTestDB(t))

	monthly, _ := domain.DefaultCatalog().Plan(domain.TierMonthly)
	lifetime, _ := domain.DefaultCatalog().Plan(domain.TierLifetime)

	now := baseTime
	longAgo := now.Add(-48 * time.Hour)
	justNow := now.Add(-time.Second)
	soon := now.Add(time.Hour)

	require.NoError(t, repo.Upsert(ctx, domain.NewEntitlement("expired-late", monthly, &justNow, longAgo)))
	require.NoError(t, repo.Upsert(ctx, domain.NewEntitlement("expired-early", monthly, &longAgo, longAgo)))
	require.NoError(t, repo.Upsert(ctx, domain.NewEntitlement("live", monthly, &soon, longAgo)))
	require.NoError(t, repo.Upsert(ctx, domain.NewEntitlement("expiring-now", monthly, &now, longAgo)))
	require.NoError(t, repo.Upsert(ctx, domain.NewEntitlement("forever", lifetime, nil, longAgo)))
	require.NoError(t, repo.Upsert(ctx, domain.NewEntitlement("cleared", monthly, &longAgo, longAgo)))
	_, err := repo.Clear(ctx, "cleared", longAgo)
	require.NoError(t, err)

	tenants, err := repo.ListExpired(ctx, now, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"expired-early", "expired-late", "expiring-now"}, tenants)

	limited, err := repo.ListExpired(ctx, now, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"expired-early"}, limited)
}
