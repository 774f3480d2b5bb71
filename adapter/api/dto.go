package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	billingApp "github.com/lycebot/premium/internal/billing/application"
	billingDomain "github.com/lycebot/premium/internal/billing/domain"
	licensingApp "github.com/lycebot/premium/internal/licensing/application"
	"github.com/lycebot/premium/internal/licensing/domain"
)

// ViewResponse is a tenant's entitlement as seen by callers.
type ViewResponse struct {
	TenantID    string     `json:"tenant_id"`
	IsPremium   bool       `json:"is_premium"`
	Tier        string     `json:"tier"`
	TierName    string     `json:"tier_name,omitempty"`
	Features    []string   `json:"features"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

func newViewResponse(v *domain.View) *ViewResponse {
	if v == nil {
		return nil
	}
	return &ViewResponse{
		TenantID:    v.TenantID,
		IsPremium:   v.IsPremium,
		Tier:        string(v.Tier),
		TierName:    v.TierName,
		Features:    v.Features.Strings(),
		ExpiresAt:   v.ExpiresAt,
		ActivatedAt: v.ActivatedAt,
	}
}

// LicenseResponse is the admin view of a license.
type LicenseResponse struct {
	ID          uuid.UUID  `json:"id"`
	Key         string     `json:"key"`
	Tier        string     `json:"tier"`
	Status      string     `json:"status"`
	PurchaserID string     `json:"purchaser_id,omitempty"`
	TenantID    string     `json:"tenant_id,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Note        string     `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newLicenseResponse(l *domain.License) *LicenseResponse {
	if l == nil {
		return nil
	}
	return &LicenseResponse{
		ID:          l.ID,
		Key:         l.Key,
		Tier:        string(l.Tier),
		Status:      string(l.Status),
		PurchaserID: l.PurchaserID,
		TenantID:    l.TenantID,
		ActivatedAt: l.ActivatedAt,
		ExpiresAt:   l.ExpiresAt,
		EndedAt:     l.EndedAt,
		Note:        l.Note,
		CreatedAt:   l.CreatedAt,
	}
}

// IssuedLicenseResponse is returned when a license is created.
type IssuedLicenseResponse struct {
	LicenseID  uuid.UUID  `json:"license_id"`
	Key        string     `json:"key"`
	Tier       string     `json:"tier"`
	TierName   string     `json:"tier_name"`
	PriceCents int64      `json:"price_cents"`
	Currency   string     `json:"currency"`
	Features   []string   `json:"features"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func newIssuedLicenseResponse(l *licensingApp.IssuedLicense) *IssuedLicenseResponse {
	if l == nil {
		return nil
	}
	return &IssuedLicenseResponse{
		LicenseID:  l.LicenseID,
		Key:        l.Key,
		Tier:       string(l.Tier),
		TierName:   l.TierName,
		PriceCents: l.PriceCents,
		Currency:   l.Currency,
		Features:   l.Features.Strings(),
		ExpiresAt:  l.ExpiresAt,
	}
}

// RevocationResponse reports what a revoke call ended.
type RevocationResponse struct {
	TenantID string           `json:"tenant_id,omitempty"`
	Reason   string           `json:"reason"`
	Revoked  bool             `json:"revoked"`
	License  *LicenseResponse `json:"license,omitempty"`
}

func newRevocationResponse(rev *licensingApp.Revocation) *RevocationResponse {
	return &RevocationResponse{
		TenantID: rev.TenantID,
		Reason:   string(rev.Reason),
		Revoked:  rev.Revoked,
		License:  newLicenseResponse(rev.License),
	}
}

// PlanResponse describes a purchasable tier.
type PlanResponse struct {
	Tier         string   `json:"tier"`
	Name         string   `json:"name"`
	PriceCents   int64    `json:"price_cents"`
	Currency     string   `json:"currency"`
	DurationDays int      `json:"duration_days,omitempty"`
	Features     []string `json:"features"`
}

// ActivateRequest is the body of POST /tenants/{tenantID}/activate.
type ActivateRequest struct {
	Key         string `json:"key"`
	RequesterID string `json:"requester_id"`
}

// Bind implements render.Binder.
func (a *ActivateRequest) Bind(*http.Request) error {
	a.Key = strings.TrimSpace(a.Key)
	a.RequesterID = strings.TrimSpace(a.RequesterID)
	switch {
	case a.Key == "":
		return errors.New("key is required")
	case a.RequesterID == "":
		return errors.New("requester_id is required")
	}
	return nil
}

// ActivateResponse is returned by a successful activation.
type ActivateResponse struct {
	licensingApp.Result
	View    *ViewResponse    `json:"view"`
	License *LicenseResponse `json:"license"`
}

// IssueLicenseRequest is the body of POST /admin/licenses.
type IssueLicenseRequest struct {
	Tier        string     `json:"tier"`
	PurchaserID string     `json:"purchaser_id,omitempty"`
	Note        string     `json:"note,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Bind implements render.Binder.
func (i *IssueLicenseRequest) Bind(*http.Request) error {
	if strings.TrimSpace(i.Tier) == "" {
		return errors.New("tier is required")
	}
	return nil
}

// PurchaseRequest is the body of POST /admin/purchases.
type PurchaseRequest struct {
	billingDomain.PurchaseCompleted
}

// Bind implements render.Binder.
func (p *PurchaseRequest) Bind(*http.Request) error {
	return p.Validate()
}

// CancellationRequest is the body of POST /admin/cancellations.
type CancellationRequest struct {
	billingDomain.SubscriptionCanceled
}

// Bind implements render.Binder.
func (c *CancellationRequest) Bind(*http.Request) error {
	if strings.TrimSpace(c.LicenseKey) == "" {
		return errors.New("license_key is required")
	}
	return nil
}

// PurchaseResponse reports how a purchase was fulfilled.
type PurchaseResponse struct {
	PaymentID        uuid.UUID              `json:"payment_id"`
	License          *IssuedLicenseResponse `json:"license,omitempty"`
	Duplicate        bool                   `json:"duplicate"`
	Activated        bool                   `json:"activated"`
	ActivationReason string                 `json:"activation_reason,omitempty"`
}

func newPurchaseResponse(res *billingApp.PurchaseResult) *PurchaseResponse {
	out := &PurchaseResponse{
		License:          newIssuedLicenseResponse(res.License),
		Duplicate:        res.Duplicate,
		Activated:        res.Activated,
		ActivationReason: string(res.ActivationReason),
	}
	if res.Payment != nil {
		out.PaymentID = res.Payment.ID
	}
	return out
}
