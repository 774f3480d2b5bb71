package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	billingApp "github.com/lycebot/premium/internal/billing/application"
	billingDomain "github.com/lycebot/premium/internal/billing/domain"
	licensingApp "github.com/lycebot/premium/internal/licensing/application"
	"github.com/lycebot/premium/internal/licensing/domain"
)

// Licensing is the licensing service surface the API needs.
type Licensing interface {
	IssueLicense(ctx context.Context, req licensingApp.IssueRequest) (*licensingApp.IssuedLicense, error)
	Activate(ctx context.Context, req licensingApp.ActivateRequest) (*licensingApp.Activation, error)
	Revoke(ctx context.Context, tenantID string) (*licensingApp.Revocation, error)
	RevokeKey(ctx context.Context, key string) (*licensingApp.Revocation, error)
	GetStatus(ctx context.Context, tenantID string) (*domain.View, error)
	Sweep(ctx context.Context) (int, error)
	LicenseInfo(ctx context.Context, key string) (*domain.License, error)
	ListLicenses(ctx context.Context, filter domain.LicenseFilter) ([]*domain.License, error)
	Catalog() *domain.Catalog
	Gate() *licensingApp.Gate
}

// Purchases handles payment provider facts.
type Purchases interface {
	HandlePurchase(ctx context.Context, p billingDomain.PurchaseCompleted) (*billingApp.PurchaseResult, error)
	HandleSubscriptionCanceled(ctx context.Context, c billingDomain.SubscriptionCanceled) error
}

type handler struct {
	logger *slog.Logger
}

// LicensingHandler serves tenant-facing premium endpoints.
type LicensingHandler struct {
	handler
	licensing Licensing
	limiter   *requesterLimiter
}

// Tiers handles GET /api/v1/tiers
func (h *LicensingHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	plans := h.licensing.Catalog().Plans()
	out := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, PlanResponse{
			Tier:         string(p.Tier),
			Name:         p.Name,
			PriceCents:   p.PriceCents,
			Currency:     p.Currency,
			DurationDays: p.DurationDays,
			Features:     p.Features.Strings(),
		})
	}
	render.JSON(w, r, out)
}

// Status handles GET /api/v1/tenants/{tenantID}/status
func (h *LicensingHandler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.licensing.GetStatus(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		h.renderError(w, r, "get status", err)
		return
	}
	render.JSON(w, r, newViewResponse(view))
}

// Feature handles GET /api/v1/tenants/{tenantID}/features/{feature}. Any
// failure to resolve the entitlement answers allowed=false.
func (h *LicensingHandler) Feature(w http.ResponseWriter, r *http.Request) {
	feature, err := domain.ParseFeature(chi.URLParam(r, "feature"))
	if err != nil {
		h.renderError(w, r, "check feature", err)
		return
	}

	tenantID := chi.URLParam(r, "tenantID")
	render.JSON(w, r, map[string]any{
		"tenant_id": tenantID,
		"feature":   feature,
		"allowed":   h.licensing.Gate().Allow(r.Context(), tenantID, feature),
	})
}

// Activate handles POST /api/v1/tenants/{tenantID}/activate
func (h *LicensingHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := render.Bind(r, &req); err != nil {
		_ = render.Render(w, r, badRequest("%s", err.Error()))
		return
	}

	if !h.limiter.Allow(req.RequesterID) {
		w.Header().Set("Retry-After", "60")
		_ = render.Render(w, r, &APIError{
			Status:  http.StatusTooManyRequests,
			Reason:  ReasonRateLimited,
			Message: "Too many activation attempts. Please wait a minute and try again.",
		})
		return
	}

	activation, err := h.licensing.Activate(r.Context(), licensingApp.ActivateRequest{
		TenantID:    chi.URLParam(r, "tenantID"),
		Key:         req.Key,
		RequesterID: req.RequesterID,
	})
	if err != nil {
		h.renderError(w, r, "activate", err)
		return
	}

	render.JSON(w, r, ActivateResponse{
		Result:  licensingApp.Outcome(nil),
		View:    newViewResponse(activation.View),
		License: newLicenseResponse(activation.License),
	})
}

// RequireFeature rejects requests whose tenant lacks feature. The tenant is
// read from the tenantParam URL parameter.
func RequireFeature(gate *licensingApp.Gate, tenantParam string, feature domain.Feature) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gate.Require(r.Context(), chi.URLParam(r, tenantParam), feature); err != nil {
				_ = render.Render(w, r, errorFor(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
