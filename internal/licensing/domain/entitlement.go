package domain

import (
	"slices"
	"time"
)

// Entitlement is the stored, per-tenant premium state. Features are a
// snapshot of the tier's catalog entry taken at activation.
type Entitlement struct {
	TenantID    string
	IsPremium   bool
	Tier        Tier
	Features    FeatureSet
	ExpiresAt   *time.Time
	ActivatedAt *time.Time
	UpdatedAt   time.Time
}

// NewEntitlement builds the premium entitlement written on activation.
func NewEntitlement(tenantID string, plan Plan, expiresAt *time.Time, now time.Time) *Entitlement {
	at := now.UTC()
	return &Entitlement{
		TenantID:    tenantID,
		IsPremium:   true,
		Tier:        plan.Tier,
		Features:    slices.Clone(plan.Features),
		ExpiresAt:   expiresAt,
		ActivatedAt: &at,
		UpdatedAt:   at,
	}
}

// IsLive reports whether the entitlement grants premium at now.
func (e *Entitlement) IsLive(now time.Time) bool {
	return e != nil && e.IsPremium && (e.ExpiresAt == nil || e.ExpiresAt.After(now))
}

// IsExpired reports whether the entitlement is still flagged premium although
// its expiry is not after now. For a premium entitlement exactly one of
// IsLive and IsExpired holds.
func (e *Entitlement) IsExpired(now time.Time) bool {
	return e != nil && e.IsPremium && e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// View is the resolved entitlement returned to callers.
type View struct {
	TenantID    string     `json:"tenant_id"`
	IsPremium   bool       `json:"is_premium"`
	Tier        Tier       `json:"tier"`
	TierName    string     `json:"tier_name,omitempty"`
	Features    FeatureSet `json:"features"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// FreeView is the view of a tenant without premium.
func FreeView(tenantID string) *View {
	return &View{
		TenantID: tenantID,
		Tier:     TierFree,
		Features: FeatureSet{},
	}
}

// ViewOf renders a live entitlement.
func ViewOf(e *Entitlement, plan Plan) *View {
	return &View{
		TenantID:    e.TenantID,
		IsPremium:   true,
		Tier:        e.Tier,
		TierName:    plan.Name,
		Features:    slices.Clone(e.Features),
		ExpiresAt:   e.ExpiresAt,
		ActivatedAt: e.ActivatedAt,
	}
}

// HasFeature reports whether the view grants f.
func (v *View) HasFeature(f Feature) bool {
	return v != nil && v.IsPremium && v.Features.Contains(f)
}
