package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
	"github.com/lycebot/premium/pkg/observability"
)

func TestResolve_FreeTenant(t *testing.T) {
	h := newHarness(t)

	view, err := h.svc.GetStatus(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, view.IsPremium)
	assert.Equal(t, domain.TierFree, view.Tier)
	assert.NotNil(t, view.Features)
	assert.Empty(t, view.Features)
}

func TestResolve_LazyExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	issued := h.activate(t, domain.TierMonthly)

	h.clock.Advance(29 * 24 * time.Hour)
	view, err := h.svc.GetStatus(ctx, guildID)
	require.NoError(t, err)
	assert.True(t, view.IsPremium)

	h.clock.Advance(2 * 24 * time.Hour)
	view, err = h.svc.GetStatus(ctx, guildID)
	require.NoError(t, err)
	assert.False(t, view.IsPremium)

	stored := h.license(t, issued.Key)
	assert.Equal(t, domain.LicenseStatusExpired, stored.Status)
	assert.False(t, h.entitlement(t, guildID).IsPremium)

	h.svc.Wait()
	assert.Len(t, h.notifier.Kind(NotificationExpired), 1)
	assert.Equal(t, int64(1), h.metrics.GetCounter(observability.MetricRevocations, observability.T("reason", "expired")))
}

func TestResolve_ExpiresAtTheExactInstant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.activate(t, domain.TierMonthly)

	h.clock.Advance(30 * 24 * time.Hour)
	view, err := h.svc.GetStatus(ctx, guildID)
	require.NoError(t, err)
	assert.False(t, view.IsPremium)
	assert.Equal(t, domain.LicenseStatusExpired, h.license(t, first.Key).Status)

	second := h.issue(t, domain.TierMonthly)
	act, err := h.svc.Activate(ctx, ActivateRequest{TenantID: guildID, Key: second.Key, RequesterID: ownerID})
	require.NoError(t, err)
	assert.True(t, act.View.IsPremium)
}

func TestResolve_ReadsStoredExpiryEveryTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	issued := h.activate(t, domain.TierMonthly)

	view, err := h.svc.GetStatus(ctx, guildID)
	require.NoError(t, err)
	require.True(t, view.IsPremium)

	past := database.TimeValue(h.conn.Driver(), h.clock.Now().Add(-time.Second))
	_, err = h.conn.Exec(ctx, `UPDATE entitlements SET expires_at = ? WHERE tenant_id = ?`, past, guildID)
	require.NoError(t, err)

	view, err = h.svc.GetStatus(ctx, guildID)
	require.NoError(t, err)
	assert.False(t, view.IsPremium)
	assert.Equal(t, domain.LicenseStatusExpired, h.license(t, issued.Key).Status)
}

func TestResolve_SeesRevocationByAnotherProcess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.activate(t, domain.TierYearly)
	require.True(t, h.svc.HasFeature(ctx, guildID, domain.FeatureGlobalLeaderboard))

	rev, err := h.sibling(t).Revoke(ctx, guildID)
	require.NoError(t, err)
	require.True(t, rev.Revoked)

	view, err := h.svc.GetStatus(ctx, guildID)
	require.NoError(t, err)
	assert.False(t, view.IsPremium)
	assert.Empty(t, view.Features)
	assert.False(t, h.svc.HasFeature(ctx, guildID, domain.FeatureGlobalLeaderboard))
}

func TestResolve_SeesActivationByAnotherProcess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.svc.GetStatus(ctx, guildID)
	require.NoError(t, err)
	require.False(t, view.IsPremium)

	other := h.sibling(t)
	issued, err := other.IssueLicense(ctx, IssueRequest{Tier: domain.TierLifetime})
	require.NoError(t, err)
	_, err = other.Activate(ctx, ActivateRequest{TenantID: guildID, Key: issued.Key, RequesterID: ownerID})
	require.NoError(t, err)

	view, err = h.svc.GetStatus(ctx, guildID)
	require.NoError(t, err)
	assert.True(t, view.IsPremium)
	assert.Equal(t, domain.TierLifetime, view.Tier)
}

type brokenEntitlements struct {
	domain.EntitlementRepository
}

func (brokenEntitlements) Get(context.Context, string) (*domain.Entitlement, error) {
	return nil, errors.New("database is locked")
}

func TestGate_FailsClosed(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Entitlements = brokenEntitlements{EntitlementRepository: d.Entitlements}
	})
	ctx := context.Background()

	assert.False(t, h.svc.HasFeature(ctx, guildID, domain.FeatureAPIAccess))

	err := h.svc.Gate().Require(ctx, guildID, domain.FeatureAPIAccess)
	assert.ErrorIs(t, err, domain.ErrFeatureNotEntitled)
	assert.Equal(t, domain.ReasonFeatureNotAllowed, Outcome(err).Reason)
}

func TestGate_Require(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.activate(t, domain.TierMonthly)

	assert.NoError(t, h.svc.Gate().Require(ctx, guildID, domain.FeatureGlobalLeaderboard))
	assert.ErrorIs(t, h.svc.Gate().Require(ctx, guildID, domain.FeatureEarlyAccessFeatures), domain.ErrFeatureNotEntitled)
	assert.ErrorIs(t, h.svc.Gate().Require(ctx, "free-guild", domain.FeatureGlobalLeaderboard), domain.ErrFeatureNotEntitled)
	assert.Equal(t, int64(1), h.metrics.GetCounter(observability.MetricFeatureChecks,
		observability.T("feature", string(domain.FeatureGlobalLeaderboard)),
		observability.T("allowed", "true"),
	))
}
