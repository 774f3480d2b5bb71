package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lycebot/premium/internal/licensing/domain"
)

// Resolver answers "what does this tenant have right now". Every call reads
// the stored entitlement, and one whose expiry has passed is revoked on read,
// so an expired or revoked tenant is never reported premium.
type Resolver struct {
	*core
	revoker *Revoker
}

// Resolve returns the tenant's current view. Tenants without a row are free.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (*domain.View, error) {
	now := r.clock()

	e, err := r.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if e.IsExpired(now) {
		if _, err := r.revoker.Revoke(ctx, tenantID, RevokeExpired); err != nil {
			return nil, fmt.Errorf("expire entitlement: %w", err)
		}
		if e, err = r.load(ctx, tenantID); err != nil {
			return nil, err
		}
	}
	return r.render(tenantID, e, now), nil
}

// HasFeature reports whether the tenant's current view grants feature.
func (r *Resolver) HasFeature(ctx context.Context, tenantID string, feature domain.Feature) (bool, error) {
	view, err := r.Resolve(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return view.HasFeature(feature), nil
}

// load returns nil without error for tenants that never had premium.
func (r *Resolver) load(ctx context.Context, tenantID string) (*domain.Entitlement, error) {
	e, err := r.entitlements.Get(ctx, tenantID)
	if errors.Is(err, domain.ErrEntitlementNotFound) {
		return nil, nil
	}
	return e, err
}

func (r *Resolver) render(tenantID string, e *domain.Entitlement, now time.Time) *domain.View {
	if !e.IsLive(now) {
		return domain.FreeView(tenantID)
	}
	plan, _ := r.catalog.Plan(e.Tier)
	return domain.ViewOf(e, plan)
}
