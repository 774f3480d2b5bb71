package application

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/internal/licensing/infrastructure/persistence"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
	_ "github.com/lycebot/premium/internal/shared/infrastructure/database/sqlite"
	"github.com/lycebot/premium/internal/shared/infrastructure/migrations"
	"github.com/lycebot/premium/pkg/observability"
)

const (
	guildID = "guild-1"
	ownerID = "owner-1"
)

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockOwnerOracle struct {
	mock.Mock
}

func (m *mockOwnerOracle) Owner(ctx context.Context, tenantID string) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) Kind(kind NotificationKind) []Notification {
	var out []Notification
	for _, msg := range n.Sent() {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

func (n *recordingNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

type harness struct {
	svc          *Service
	conn         database.Connection
	licenses     *persistence.LicenseRepository
	entitlements *persistence.EntitlementRepository
	owners       *mockOwnerOracle
	notifier     *recordingNotifier
	metrics      *observability.InMemoryMetrics
	clock        *testClock
}

type harnessOption func(*Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	ctx := context.Background()
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "premium.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn))

	h := &harness{
		conn:         conn,
		licenses:     persistence.NewLicenseRepository(conn),
		entitlements: persistence.NewEntitlementRepository(conn),
		owners:       &mockOwnerOracle{},
		notifier:     &recordingNotifier{},
		metrics:      observability.NewInMemoryMetrics(),
		clock:        &testClock{now: baseTime},
	}
	h.owners.On("Owner", mock.Anything, guildID).Return(ownerID, nil).Maybe()

	deps := Deps{
		Licenses:     h.licenses,
		Entitlements: h.entitlements,
		UnitOfWork:   database.NewUnitOfWork(conn),
		Owners:       h.owners,
		Notifier:     h.notifier,
		Metrics:      h.metrics,
		Clock:        h.clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	h.svc, err = NewService(deps)
	require.NoError(t, err)
	t.Cleanup(h.svc.Wait)
	return h
}

// sibling builds a second service on the same database, the way the worker
// and the API server share one store.
func (h *harness) sibling(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Deps{
		Licenses:     persistence.NewLicenseRepository(h.conn),
		Entitlements: persistence.NewEntitlementRepository(h.conn),
		UnitOfWork:   database.NewUnitOfWork(h.conn),
		Owners:       h.owners,
		Clock:        h.clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Wait)
	return svc
}

func (h *harness) issue(t *testing.T, tier domain.Tier) *IssuedLicense {
	t.Helper()
	issued, err := h.svc.IssueLicense(context.Background(), IssueRequest{Tier: tier, PurchaserID: "buyer-1"})
	require.NoError(t, err)
	return issued
}

func (h *harness) activate(t *testing.T, tier domain.Tier) *IssuedLicense {
	t.Helper()
	issued := h.issue(t, tier)
	_, err := h.svc.Activate(context.Background(), ActivateRequest{
		TenantID:    guildID,
		Key:         issued.Key,
		RequesterID: ownerID,
	})
	require.NoError(t, err)
	return issued
}

func (h *harness) license(t *testing.T, key string) *domain.License {
	t.Helper()
	l, err := h.licenses.FindByKey(context.Background(), key)
	require.NoError(t, err)
	return l
}

func (h *harness) entitlement(t *testing.T, tenantID string) *domain.Entitlement {
	t.Helper()
	e, err := h.entitlements.Get(context.Background(), tenantID)
	require.NoError(t, err)
	return e
}

// failingEntitlements injects errors into selected entitlement operations.
type failingEntitlements struct {
	domain.EntitlementRepository
	upsertErr error
	clearErr  map[string]error
}

func (f *failingEntitlements) Upsert(ctx context.Context, e *domain.Entitlement) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.EntitlementRepository.Upsert(ctx, e)
}

func (f *failingEntitlements) Clear(ctx context.Context, tenantID string, at time.Time) (bool, error) {
	if err := f.clearErr[tenantID]; err != nil {
		return false, err
	}
	return f.EntitlementRepository.Clear(ctx, tenantID, at)
}
