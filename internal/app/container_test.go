package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingDomain "github.com/lycebot/premium/internal/billing/domain"
	licensingApp "github.com/lycebot/premium/internal/licensing/application"
	licensingDomain "github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
	"github.com/lycebot/premium/internal/shared/infrastructure/eventbus"
	"github.com/lycebot/premium/pkg/config"
	"github.com/lycebot/premium/pkg/observability"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:            "test",
		DatabaseDriver:    "sqlite",
		SQLitePath:        filepath.Join(t.TempDir(), "premium.db"),
		OwnerCacheTTL:     time.Minute,
		PurchaseQueue:     "premium.purchases",
		StaticGuildOwners: "guild-1:owner-1",
		LicenseKeyPrefix:  "TEST",
		NotifyTimeout:     time.Second,
	}
}

func newLocalContainer(t *testing.T) *Container {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewContainer(context.Background(), localConfig(t), logger)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewContainer_LocalMode(t *testing.T) {
	c := newLocalContainer(t)

	assert.Equal(t, database.DriverSQLite, c.DBDriver)
	assert.Nil(t, c.RedisClient)
	assert.NotNil(t, c.InProcessEventBus)
	assert.NotNil(t, c.LicenseRepo)
	assert.NotNil(t, c.EntitlementRepo)
	assert.NotNil(t, c.PaymentRepo)
	assert.NotNil(t, c.Licensing)
	assert.NotNil(t, c.Purchases)
	assert.Len(t, c.InProcessEventBus.Registry().Consumers(billingDomain.RoutingKeyPurchaseCompleted), 1)

	_, err := c.NewRabbitMQConsumer()
	assert.Error(t, err)
}

func TestNewContainer_RejectsBadOwnerList(t *testing.T) {
	cfg := localConfig(t)
	cfg.StaticGuildOwners = "guild-without-owner"

	_, err := NewContainer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestContainer_IssueAndActivate(t *testing.T) {
	c := newLocalContainer(t)
	ctx := context.Background()

	issued, err := c.Licensing.IssueLicense(ctx, licensingApp.IssueRequest{Tier: licensingDomain.TierMonthly})
	require.NoError(t, err)
	assert.Contains(t, issued.Key, "TEST-")

	_, err = c.Licensing.Activate(ctx, licensingApp.ActivateRequest{
		TenantID:    "guild-1",
		Key:         issued.Key,
		RequesterID: "owner-1",
	})
	require.NoError(t, err)

	view, err := c.Licensing.GetStatus(ctx, "guild-1")
	require.NoError(t, err)
	assert.True(t, view.IsPremium)
	assert.Equal(t, licensingDomain.TierMonthly, view.Tier)

	// A stranger cannot redeem a key for a guild they do not own
	other, err := c.Licensing.IssueLicense(ctx, licensingApp.IssueRequest{Tier: licensingDomain.TierYearly})
	require.NoError(t, err)
	_, err = c.Licensing.Activate(ctx, licensingApp.ActivateRequest{
		TenantID:    "guild-1",
		Key:         other.Key,
		RequesterID: "someone-else",
	})
	assert.ErrorIs(t, err, licensingDomain.ErrNotAuthorized)
}

func TestContainer_InProcessPurchase(t *testing.T) {
	c := newLocalContainer(t)
	ctx := context.Background()

	payload, err := json.Marshal(billingDomain.PurchaseCompleted{
		Provider:    "stripe",
		PaymentID:   "pi_local_1",
		TenantID:    "guild-1",
		PurchaserID: "owner-1",
		Tier:        licensingDomain.TierYearly,
		AmountCents: 4999,
		Currency:    "USD",
	})
	require.NoError(t, err)

	envelope, err := json.Marshal(eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: billingDomain.RoutingKeyPurchaseCompleted,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	require.NoError(t, err)

	require.NoError(t, c.EventPublisher.Publish(ctx, billingDomain.RoutingKeyPurchaseCompleted, envelope))

	payment, err := c.PaymentRepo.FindByProviderPaymentID(ctx, "stripe", "pi_local_1")
	require.NoError(t, err)
	assert.Equal(t, licensingDomain.TierYearly, payment.Tier)

	assert.True(t, c.Licensing.HasFeature(ctx, "guild-1", licensingDomain.FeatureAPIAccess))
	assert.False(t, c.Licensing.HasFeature(ctx, "guild-1", licensingDomain.FeatureCustomBranding))
}

func TestContainer_HealthAndMetrics(t *testing.T) {
	c := newLocalContainer(t)

	health := c.Health.GetOverallHealth(context.Background())
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
	assert.Contains(t, health.Checks, "database")

	_, err := c.Licensing.IssueLicense(context.Background(), licensingApp.IssueRequest{Tier: licensingDomain.TierLifetime})
	require.NoError(t, err)

	families, err := c.Metrics.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, observability.PrometheusName(observability.MetricLicensesIssued))
}

type recordingConsumer struct {
	events []*eventbus.ConsumedEvent
}

func (r *recordingConsumer) EventTypes() []string {
	return []string{licensingDomain.RoutingKeyLicenseIssued, licensingDomain.RoutingKeyLicenseActivated}
}

func (r *recordingConsumer) Handle(_ context.Context, event *eventbus.ConsumedEvent) error {
	r.events = append(r.events, event)
	return nil
}

func TestContainer_OutboxRelaysAfterCommit(t *testing.T) {
	cfg := localConfig(t)
	cfg.OutboxEnabled = true
	cfg.OutboxMaxRetries = 3
	c, err := NewContainer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NotNil(t, c.Outbox)

	consumer := &recordingConsumer{}
	c.InProcessEventBus.RegisterConsumer(consumer)

	ctx := context.Background()
	issued, err := c.Licensing.IssueLicense(ctx, licensingApp.IssueRequest{Tier: licensingDomain.TierMonthly})
	require.NoError(t, err)
	_, err = c.Licensing.Activate(ctx, licensingApp.ActivateRequest{
		TenantID:    "guild-1",
		Key:         issued.Key,
		RequesterID: "owner-1",
	})
	require.NoError(t, err)
	c.Licensing.Wait()

	// Nothing leaves before the relay runs
	assert.Empty(t, consumer.events)

	processor := c.NewOutboxProcessor()
	require.NotNil(t, processor)
	require.NoError(t, processor.ProcessOnce(ctx))

	require.Len(t, consumer.events, 2)
	assert.Equal(t, licensingDomain.RoutingKeyLicenseIssued, consumer.events[0].RoutingKey)
	assert.Equal(t, licensingDomain.RoutingKeyLicenseActivated, consumer.events[1].RoutingKey)
	assert.Equal(t, issued.LicenseID, consumer.events[1].AggregateID)
}

func TestContainer_OutboxDisabledByDefault(t *testing.T) {
	c := newLocalContainer(t)
	assert.Nil(t, c.Outbox)
	assert.Nil(t, c.NewOutboxProcessor())
}
