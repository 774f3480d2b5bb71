package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lycebot/premium/internal/licensing/domain"
	sharedApplication "github.com/lycebot/premium/internal/shared/application"
	"github.com/lycebot/premium/pkg/observability"
)

// RevokeReason records why premium ended.
type RevokeReason string

const (
	RevokeManual  RevokeReason = "manual"
	RevokeExpired RevokeReason = "expired"
)

// Revocation describes the effect of a revoke call.
type Revocation struct {
	TenantID string
	Reason   RevokeReason
	// Revoked is false when there was nothing to end.
	Revoked bool
	// License is the license that was ended, if any.
	License *domain.License

	ended *domain.LicenseEnded
}

// Revoker ends premium for tenants.
type Revoker struct {
	*core
}

// Revoke ends the tenant's active license and clears its entitlement in one
// transaction. Revoking a tenant without premium succeeds with Revoked false.
func (r *Revoker) Revoke(ctx context.Context, tenantID string, reason RevokeReason) (*Revocation, error) {
	ctx = observability.WithTenantID(ctx, tenantID)
	now := r.clock()

	var rev *Revocation
	err := sharedApplication.WithUnitOfWork(ctx, r.uow, func(ctx context.Context) error {
		var err error
		rev, err = r.revokeInTx(ctx, tenantID, reason, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("revoke premium for %s: %w", tenantID, err)
	}

	r.announce(ctx, rev)
	return rev, nil
}

// RevokeKey ends a license by key. An active license revokes its tenant, an
// inactive one is cancelled, and a license already ended is left as is.
func (r *Revoker) RevokeKey(ctx context.Context, key string) (*Revocation, error) {
	l, err := r.licenses.FindByKey(ctx, domain.NormalizeKey(key))
	if err != nil {
		return nil, err
	}

	switch l.Status {
	case domain.LicenseStatusActive:
		rev, err := r.Revoke(ctx, l.TenantID, RevokeManual)
		if err != nil {
			return nil, err
		}
		if rev.License == nil {
			rev.License = l
		}
		return rev, nil

	case domain.LicenseStatusInactive:
		if err := l.Revoke(r.clock()); err != nil {
			return nil, err
		}
		rev := &Revocation{Reason: RevokeManual, Revoked: true, License: l, ended: domain.NewLicenseEnded(l)}
		err := sharedApplication.WithUnitOfWork(ctx, r.uow, func(ctx context.Context) error {
			if err := r.licenses.Transition(ctx, l, domain.LicenseStatusInactive); err != nil {
				return err
			}
			return r.record(ctx, rev.ended)
		})
		if err != nil {
			return nil, fmt.Errorf("cancel license %s: %w", l.ID, err)
		}
		r.announce(ctx, rev)
		return rev, nil

	default:
		return &Revocation{TenantID: l.TenantID, Reason: RevokeManual, License: l}, nil
	}
}

// revokeInTx runs inside the caller's unit of work.
func (r *Revoker) revokeInTx(ctx context.Context, tenantID string, reason RevokeReason, now time.Time) (*Revocation, error) {
	rev := &Revocation{TenantID: tenantID, Reason: reason}

	l, err := r.licenses.FindActiveByTenant(ctx, tenantID)
	switch {
	case errors.Is(err, domain.ErrLicenseNotFound):
		l = nil
	case err != nil:
		return nil, err
	}

	if l != nil {
		if reason == RevokeExpired {
			err = l.Expire(now)
		} else {
			err = l.Revoke(now)
		}
		if err != nil {
			return nil, err
		}
		if err := r.licenses.Transition(ctx, l, domain.LicenseStatusActive); err != nil {
			return nil, err
		}
		rev.License = l
		rev.ended = domain.NewLicenseEnded(l)
		if err := r.record(ctx, rev.ended); err != nil {
			return nil, err
		}
	}

	cleared, err := r.entitlements.Clear(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}
	rev.Revoked = l != nil || cleared
	return rev, nil
}

// announce runs the post-commit effects of a revocation.
func (r *Revoker) announce(ctx context.Context, rev *Revocation) {
	if !rev.Revoked {
		return
	}

	r.metrics.Counter(observability.MetricRevocations, 1, observability.T("reason", string(rev.Reason)))

	attrs := []any{"reason", rev.Reason}
	if rev.License != nil {
		attrs = append(attrs, "license_id", rev.License.ID, "key", rev.License.MaskedKey())
	}
	if rev.TenantID == "" {
		r.logger.InfoContext(ctx, "license cancelled", attrs...)
	} else {
		r.logger.InfoContext(observability.WithTenantID(ctx, rev.TenantID), "premium revoked", attrs...)
	}

	if rev.ended != nil {
		r.publish(ctx, rev.ended)
	}
	if rev.TenantID == "" {
		return
	}

	kind := NotificationRevoked
	if rev.Reason == RevokeExpired {
		kind = NotificationExpired
	}
	n := Notification{Kind: kind, TenantID: rev.TenantID}
	if rev.License != nil {
		n.Tier = rev.License.Tier
		n.TierName = r.tierName(rev.License.Tier)
	}
	r.notifyOwner(ctx, n)
}
