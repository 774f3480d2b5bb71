package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lycebot/premium/internal/licensing/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c := domain.DefaultCatalog()

	tests := []struct {
		tier     domain.Tier
		name     string
		price    int64
		days     int
		features int
		has      domain.Feature
		lacks    domain.Feature
	}{
		{domain.TierMonthly, "Monthly Premium", 499, 30, 8, domain.FeatureCustomCommands20, domain.FeatureAPIAccess},
		{domain.TierYearly, "Yearly Premium", 4999, 365, 10, domain.FeatureCustomCommands50, domain.FeatureCustomBranding},
		{domain.TierLifetime, "Lifetime Premium", 6000, 0, 12, domain.FeatureCustomCommandsUnlimited, domain.FeatureCustomCommands20},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			p, err := c.Plan(tt.tier)
			require.NoError(t, err)

			assert.Equal(t, tt.name, p.Name)
			assert.Equal(t, tt.price, p.PriceCents)
			assert.Equal(t, "USD", p.Currency)
			assert.Equal(t, tt.days, p.DurationDays)
			assert.Len(t, p.Features, tt.features)
			assert.True(t, p.Features.Contains(tt.has))
			assert.False(t, p.Features.Contains(tt.lacks))
		})
	}

	assert.Len(t, c.Plans(), 3)
}

func TestCatalog_PlanIsACopy(t *testing.T) {
	c := domain.DefaultCatalog()

	p, err := c.Plan(domain.TierMonthly)
	require.NoError(t, err)
	p.Features[0] = domain.FeatureCustomBranding

	again, err := c.Plan(domain.TierMonthly)
	require.NoError(t, err)
	assert.Equal(t, domain.FeatureUnlimitedKeywordFiltering, again.Features[0])
}

func TestCatalog_UnknownTier(t *testing.T) {
	_, err := domain.DefaultCatalog().Plan(domain.Tier("weekly"))
	assert.ErrorIs(t, err, domain.ErrUnknownTier)

	_, err = domain.DefaultCatalog().Plan(domain.TierFree)
	assert.ErrorIs(t, err, domain.ErrUnknownTier)
}

func TestNewCatalog_Validation(t *testing.T) {
	_, err := domain.NewCatalog(domain.Plan{Tier: "weekly"})
	assert.ErrorIs(t, err, domain.ErrUnknownTier)

	_, err = domain.NewCatalog(
		domain.Plan{Tier: domain.TierMonthly},
		domain.Plan{Tier: domain.TierMonthly},
	)
	assert.Error(t, err)

	_, err = domain.NewCatalog(domain.Plan{Tier: domain.TierMonthly, Features: domain.FeatureSet{"teleport"}})
	assert.ErrorIs(t, err, domain.ErrUnknownFeature)

	_, err = domain.NewCatalog(domain.Plan{Tier: domain.TierMonthly, DurationDays: -1})
	assert.Error(t, err)
}

func TestPlan_ExpiresFrom(t *testing.T) {
	now := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	preset := now.Add(-time.Hour)
	c := domain.DefaultCatalog()

	monthly, _ := c.Plan(domain.TierMonthly)
	yearly, _ := c.Plan(domain.TierYearly)
	lifetime, _ := c.Plan(domain.TierLifetime)

	got := monthly.ExpiresFrom(now, nil)
	require.NotNil(t, got)
	assert.Equal(t, now.AddDate(0, 0, 30), *got)

	got = yearly.ExpiresFrom(now, nil)
	require.NotNil(t, got)
	assert.Equal(t, now.AddDate(0, 0, 365), *got)

	got = monthly.ExpiresFrom(now, &preset)
	require.NotNil(t, got)
	assert.Equal(t, preset, *got)

	assert.Nil(t, lifetime.ExpiresFrom(now, nil))
	assert.Nil(t, lifetime.ExpiresFrom(now, &preset))
}

func TestParseTier(t *testing.T) {
	tier, err := domain.ParseTier("yearly")
	require.NoError(t, err)
	assert.Equal(t, domain.TierYearly, tier)

	_, err = domain.ParseTier("free")
	assert.ErrorIs(t, err, domain.ErrUnknownTier)
}

func TestParseFeature(t *testing.T) {
	f, err := domain.ParseFeature("api_access")
	require.NoError(t, err)
	assert.Equal(t, domain.FeatureAPIAccess, f)

	_, err = domain.ParseFeature("api-access")
	assert.ErrorIs(t, err, domain.ErrUnknownFeature)

	assert.Len(t, domain.KnownFeatures(), 14)
}

func TestFeatureSet_Strings(t *testing.T) {
	s := domain.FeatureSet{domain.FeatureAPIAccess, domain.FeatureCustomBranding}
	assert.Equal(t, []string{"api_access", "custom_branding"}, s.Strings())
}
