package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingApp "github.com/lycebot/premium/internal/billing/application"
	billingPersistence "github.com/lycebot/premium/internal/billing/infrastructure/persistence"
	licensingApp "github.com/lycebot/premium/internal/licensing/application"
	"github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/internal/licensing/infrastructure/discord"
	licensingPersistence "github.com/lycebot/premium/internal/licensing/infrastructure/persistence"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
	_ "github.com/lycebot/premium/internal/shared/infrastructure/database/sqlite"
	"github.com/lycebot/premium/internal/shared/infrastructure/migrations"
	"github.com/lycebot/premium/pkg/observability"
)

const adminToken = "test-admin-token"

type testAPI struct {
	t         *testing.T
	server    *Server
	licensing *licensingApp.Service
}

func newTestAPI(t *testing.T, opts ...func(*ServerConfig)) *testAPI {
	t.Helper()
	ctx := context.Background()

	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewPrometheusMetrics()

	service, err := licensingApp.NewService(licensingApp.Deps{
		Licenses:     licensingPersistence.NewLicenseRepository(conn),
		Entitlements: licensingPersistence.NewEntitlementRepository(conn),
		UnitOfWork:   database.NewUnitOfWork(conn),
		Owners:       discord.StaticOwnerOracle{"guild-1": "owner-1", "guild-2": "owner-2"},
		Metrics:      metrics,
		Logger:       logger,
	})
	require.NoError(t, err)
	t.Cleanup(service.Wait)

	purchases := billingApp.NewPurchaseHandler(billingPersistence.NewPaymentRepository(conn), service, logger, metrics)

	health := observability.NewHealthRegistry()
	health.Register("database", observability.DatabaseHealthChecker(conn.Ping))

	cfg := DefaultServerConfig()
	cfg.AdminToken = adminToken
	cfg.ActivationRatePerMinute = 0
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testAPI{
		t: t,
		server: NewServer(cfg, Deps{
			Licensing: service,
			Purchases: purchases,
			Health:    health,
			Metrics:   metrics.Handler(),
			Logger:    logger,
		}),
		licensing: service,
	}
}

func (a *testAPI) do(method, path string, body any, admin bool) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) issue(tier domain.Tier) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/admin/licenses", IssueLicenseRequest{Tier: string(tier)}, true)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var issued IssuedLicenseResponse
	decode(a.t, rec, &issued)
	return issued.Key
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestTiers(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/tiers", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var plans []PlanResponse
	decode(t, rec, &plans)
	require.Len(t, plans, 3)
	assert.Equal(t, "monthly", plans[0].Tier)
	assert.Equal(t, int64(499), plans[0].PriceCents)
}

func TestStatus_FreeTenant(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/tenants/guild-1/status", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var view ViewResponse
	decode(t, rec, &view)
	assert.False(t, view.IsPremium)
	assert.Equal(t, "free", view.Tier)
	assert.Empty(t, view.Features)
}

func TestActivate_Success(t *testing.T) {
	api := newTestAPI(t)
	key := api.issue(domain.TierYearly)

	rec := api.do(http.MethodPost, "/api/v1/tenants/guild-1/activate",
		ActivateRequest{Key: key, RequesterID: "owner-1"}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ActivateResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.True(t, resp.View.IsPremium)
	assert.Equal(t, "yearly", resp.View.Tier)
	assert.Equal(t, "active", resp.License.Status)
	assert.Equal(t, "guild-1", resp.License.TenantID)

	rec = api.do(http.MethodGet, "/api/v1/tenants/guild-1/features/api_access", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var feature map[string]any
	decode(t, rec, &feature)
	assert.Equal(t, true, feature["allowed"])

	rec = api.do(http.MethodGet, "/api/v1/tenants/guild-1/features/custom_branding", nil, false)
	decode(t, rec, &feature)
	assert.Equal(t, false, feature["allowed"])
}

func TestActivate_Refusals(t *testing.T) {
	api := newTestAPI(t)
	key := api.issue(domain.TierMonthly)

	tests := []struct {
		name       string
		tenant     string
		body       any
		wantStatus int
		wantReason domain.Reason
	}{
		{
			name:       "missing key",
			tenant:     "guild-1",
			body:       ActivateRequest{RequesterID: "owner-1"},
			wantStatus: http.StatusBadRequest,
			wantReason: ReasonBadRequest,
		},
		{
			name:       "unknown key",
			tenant:     "guild-1",
			body:       ActivateRequest{Key: "LYCE-MON-NOPE-0000", RequesterID: "owner-1"},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: domain.ReasonInvalidOrUsedKey,
		},
		{
			name:       "not the owner",
			tenant:     "guild-1",
			body:       ActivateRequest{Key: key, RequesterID: "owner-2"},
			wantStatus: http.StatusForbidden,
			wantReason: domain.ReasonNotAuthorized,
		},
		{
			name:       "unknown tenant",
			tenant:     "guild-404",
			body:       ActivateRequest{Key: key, RequesterID: "owner-1"},
			wantStatus: http.StatusNotFound,
			wantReason: domain.ReasonTenantNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/v1/tenants/"+tt.tenant+"/activate", tt.body, false)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var apiErr APIError
			decode(t, rec, &apiErr)
			assert.False(t, apiErr.Success)
			assert.Equal(t, tt.wantReason, apiErr.Reason)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestErrorFor_OwnerLookupOutage(t *testing.T) {
	apiErr := errorFor(fmt.Errorf("%w: %w", domain.ErrOwnerUnavailable, context.DeadlineExceeded))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, domain.ReasonOwnerUnavailable, apiErr.Reason)
	assert.NotContains(t, apiErr.Message, "deadline")

	apiErr = errorFor(fmt.Errorf("guild 9: %w", domain.ErrTenantNotFound))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestActivate_AlreadyPremium(t *testing.T) {
	api := newTestAPI(t)
	first := api.issue(domain.TierLifetime)
	second := api.issue(domain.TierMonthly)

	rec := api.do(http.MethodPost, "/api/v1/tenants/guild-1/activate", ActivateRequest{Key: first, RequesterID: "owner-1"}, false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/tenants/guild-1/activate", ActivateRequest{Key: second, RequesterID: "owner-1"}, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var apiErr APIError
	decode(t, rec, &apiErr)
	assert.Equal(t, domain.ReasonAlreadyPremium, apiErr.Reason)
	assert.Equal(t, "This server already has Lifetime Premium (never expires).", apiErr.Message)
}

func TestActivate_RateLimited(t *testing.T) {
	api := newTestAPI(t, func(cfg *ServerConfig) {
		cfg.ActivationRatePerMinute = 1
		cfg.ActivationBurst = 1
	})

	body := ActivateRequest{Key: "LYCE-MON-NOPE-0000", RequesterID: "owner-1"}
	rec := api.do(http.MethodPost, "/api/v1/tenants/guild-1/activate", body, false)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/tenants/guild-1/activate", body, false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Other requesters have their own bucket
	body.RequesterID = "owner-2"
	rec = api.do(http.MethodPost, "/api/v1/tenants/guild-2/activate", body, false)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestFeature_UnknownFeature(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/tenants/guild-1/features/time_travel", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr APIError
	decode(t, rec, &apiErr)
	assert.Equal(t, domain.ReasonUnknownFeature, apiErr.Reason)
	assert.Contains(t, apiErr.Message, string(domain.FeatureWebDashboardAccess))
}

func TestAdmin_RequiresToken(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/admin/licenses", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/licenses", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	api.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_DisabledWithoutToken(t *testing.T) {
	api := newTestAPI(t, func(cfg *ServerConfig) { cfg.AdminToken = "" })

	rec := api.do(http.MethodGet, "/api/v1/admin/licenses", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_LicenseLifecycle(t *testing.T) {
	api := newTestAPI(t)
	key := api.issue(domain.TierMonthly)
	api.issue(domain.TierYearly)

	rec := api.do(http.MethodGet, "/api/v1/admin/licenses?status=inactive", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var licenses []LicenseResponse
	decode(t, rec, &licenses)
	assert.Len(t, licenses, 2)

	rec = api.do(http.MethodGet, "/api/v1/admin/licenses?status=bogus", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/tenants/guild-1/activate", ActivateRequest{Key: key, RequesterID: "owner-1"}, false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/admin/licenses/"+key, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var info LicenseResponse
	decode(t, rec, &info)
	assert.Equal(t, "active", info.Status)

	rec = api.do(http.MethodDelete, "/api/v1/admin/tenants/guild-1/premium", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var rev RevocationResponse
	decode(t, rec, &rev)
	assert.True(t, rev.Revoked)
	assert.Equal(t, "manual", rev.Reason)
	assert.Equal(t, "revoked", rev.License.Status)

	rec = api.do(http.MethodGet, "/api/v1/tenants/guild-1/status", nil, false)
	var view ViewResponse
	decode(t, rec, &view)
	assert.False(t, view.IsPremium)

	rec = api.do(http.MethodGet, "/api/v1/admin/licenses/LYCE-NOPE", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/admin/licenses/LYCE-YEA-NOPE-0000", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var apiErr APIError
	decode(t, rec, &apiErr)
	assert.Equal(t, domain.ReasonLicenseNotFound, apiErr.Reason)
	assert.Equal(t, "License not found. The key is tagged yearly.", apiErr.Message)

	rec = api.do(http.MethodPost, "/api/v1/admin/sweep", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var swept map[string]int
	decode(t, rec, &swept)
	assert.Equal(t, 0, swept["revoked"])
}

func TestAdmin_IssueUnknownTier(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/admin/licenses", IssueLicenseRequest{Tier: "platinum"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr APIError
	decode(t, rec, &apiErr)
	assert.Equal(t, domain.ReasonUnknownTier, apiErr.Reason)
}

func TestAdmin_Purchase(t *testing.T) {
	api := newTestAPI(t)

	body := map[string]any{
		"provider":     "stripe",
		"payment_id":   "pi_123",
		"tenant_id":    "guild-2",
		"purchaser_id": "owner-2",
		"tier":         "monthly",
		"amount_cents": 499,
		"currency":     "USD",
	}

	rec := api.do(http.MethodPost, "/api/v1/admin/purchases", body, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first PurchaseResponse
	decode(t, rec, &first)
	assert.True(t, first.Activated)
	assert.False(t, first.Duplicate)
	require.NotNil(t, first.License)

	rec = api.do(http.MethodPost, "/api/v1/admin/purchases", body, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var second PurchaseResponse
	decode(t, rec, &second)
	assert.True(t, second.Duplicate)

	rec = api.do(http.MethodPost, "/api/v1/admin/cancellations",
		map[string]string{"provider": "stripe", "license_key": first.License.Key}, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	view, err := api.licensing.GetStatus(context.Background(), "guild-2")
	require.NoError(t, err)
	assert.False(t, view.IsPremium)

	rec = api.do(http.MethodPost, "/api/v1/admin/purchases", map[string]any{"provider": "stripe"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireFeature(t *testing.T) {
	api := newTestAPI(t)

	r := chi.NewRouter()
	r.With(RequireFeature(api.licensing.Gate(), "tenantID", domain.FeatureWebDashboardAccess)).
		Get("/dashboard/{tenantID}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/guild-1", nil))
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	key := api.issue(domain.TierMonthly)
	_, err := api.licensing.Activate(context.Background(), licensingApp.ActivateRequest{
		TenantID: "guild-1", Key: key, RequesterID: "owner-1",
	})
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/guild-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/healthz", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var health observability.OverallHealth
	decode(t, rec, &health)
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)

	api.issue(domain.TierMonthly)
	rec = api.do(http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "premium_licenses_issued")
}

func TestCorrelationHeader(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers", nil)
	req.Header.Set(CorrelationHeader, "corr-123")
	rec := httptest.NewRecorder()
	api.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "corr-123", rec.Header().Get(CorrelationHeader))

	rec = api.do(http.MethodGet, "/api/v1/tiers", nil, false)
	assert.NotEmpty(t, rec.Header().Get(CorrelationHeader))
}
