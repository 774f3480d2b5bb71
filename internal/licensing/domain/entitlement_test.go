package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lycebot/premium/internal/licensing/domain"
)

func TestEntitlement_IsLiveAndIsExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	tests := []struct {
		name    string
		e       *domain.Entitlement
		live    bool
		expired bool
	}{
		{name: "nil", e: nil},
		{name: "not premium", e: &domain.Entitlement{IsPremium: false, ExpiresAt: &future}},
		{name: "premium without expiry", e: &domain.Entitlement{IsPremium: true}, live: true},
		{name: "premium in the future", e: &domain.Entitlement{IsPremium: true, ExpiresAt: &future}, live: true},
		{name: "premium in the past", e: &domain.Entitlement{IsPremium: true, ExpiresAt: &past}, expired: true},
		{name: "premium expiring exactly now", e: &domain.Entitlement{IsPremium: true, ExpiresAt: &now}, expired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.live, tt.e.IsLive(now))
			assert.Equal(t, tt.expired, tt.e.IsExpired(now))
			if tt.e != nil && tt.e.IsPremium {
				assert.NotEqual(t, tt.e.IsLive(now), tt.e.IsExpired(now), "premium is either live or expired")
			}
		})
	}
}

func TestNewEntitlement_SnapshotsFeatures(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	plan, err := domain.DefaultCatalog().Plan(domain.TierYearly)
	require.NoError(t, err)

	e := domain.NewEntitlement("guild-1", plan, nil, now)
	plan.Features[0] = domain.FeatureCustomBranding

	assert.True(t, e.IsPremium)
	assert.Equal(t, domain.TierYearly, e.Tier)
	assert.Equal(t, domain.FeatureUnlimitedKeywordFiltering, e.Features[0])
	require.NotNil(t, e.ActivatedAt)
	assert.Equal(t, now, *e.ActivatedAt)
}

func TestViews(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	exp := now.AddDate(0, 0, 30)
	plan, err := domain.DefaultCatalog().Plan(domain.TierMonthly)
	require.NoError(t, err)

	free := domain.FreeView("guild-1")
	assert.False(t, free.IsPremium)
	assert.Equal(t, domain.TierFree, free.Tier)
	assert.Empty(t, free.Features)
	assert.NotNil(t, free.Features)
	assert.False(t, free.HasFeature(domain.FeatureAPIAccess))

	v := domain.ViewOf(domain.NewEntitlement("guild-1", plan, &exp, now), plan)
	assert.True(t, v.IsPremium)
	assert.Equal(t, "Monthly Premium", v.TierName)
	assert.True(t, v.HasFeature(domain.FeatureBulkPurge50000))
	assert.False(t, v.HasFeature(domain.FeatureAPIAccess))
}

func TestLicenseEvents(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	l := domain.NewLicense("K", monthlyPlan(t), "buyer", "", nil, now)

	issued := domain.NewLicenseIssued(l)
	assert.Equal(t, domain.RoutingKeyLicenseIssued, issued.RoutingKey())
	assert.Equal(t, l.ID, issued.AggregateID())
	assert.Equal(t, domain.AggregateType, issued.AggregateType())
	assert.Equal(t, now, issued.OccurredAt())

	later := now.Add(time.Hour)
	require.NoError(t, l.Activate("guild-1", later, nil))
	activated := domain.NewLicenseActivated(l, "owner")
	assert.Equal(t, later, activated.OccurredAt())
	assert.Equal(t, domain.RoutingKeyLicenseActivated, activated.RoutingKey())
	assert.Equal(t, "guild-1", activated.TenantID)

	require.NoError(t, l.Expire(now))
	assert.Equal(t, domain.RoutingKeyLicenseExpired, domain.NewLicenseEnded(l).RoutingKey())

	revoked := domain.NewLicense("K2", monthlyPlan(t), "", "", nil, now)
	require.NoError(t, revoked.Revoke(now))
	assert.Equal(t, domain.RoutingKeyLicenseRevoked, domain.NewLicenseEnded(revoked).RoutingKey())
}
