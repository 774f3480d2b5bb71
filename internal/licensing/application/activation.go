package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lycebot/premium/internal/licensing/domain"
	sharedApplication "github.com/lycebot/premium/internal/shared/application"
	"github.com/lycebot/premium/pkg/observability"
)

// ActivateRequest binds a license key to a tenant on behalf of a requester.
type ActivateRequest struct {
	TenantID    string
	Key         string
	RequesterID string
}

// Activation is the result of a successful activation.
type Activation struct {
	License *domain.License
	View    *domain.View
}

// Activator redeems license keys.
type Activator struct {
	*core
	revoker *Revoker
}

// Activate checks ownership and key state, then atomically binds the license
// and writes the tenant's entitlement. Failures carry a domain error usable
// with domain.ReasonFor.
func (a *Activator) Activate(ctx context.Context, req ActivateRequest) (*Activation, error) {
	ctx = observability.WithTenantID(observability.WithOperation(ctx, "activate_license"), req.TenantID)
	timer := observability.StartTimer("activate_license").WithMetrics(a.metrics)

	act, err := a.activate(ctx, req)
	timer.StopWithError(err)

	result := "success"
	if err != nil {
		result = strings.ToLower(string(domain.ReasonFor(err)))
		level := a.logger.InfoContext
		if errors.Is(err, domain.ErrActivationFailed) || errors.Is(err, domain.ErrStoreUnavailable) ||
			errors.Is(err, domain.ErrOwnerUnavailable) {
			level = a.logger.ErrorContext
		}
		level(ctx, "license activation refused",
			"requester_id", req.RequesterID,
			"key", domain.MaskKey(domain.NormalizeKey(req.Key)),
			"reason", domain.ReasonFor(err),
			"error", err,
		)
	}
	a.metrics.Counter(observability.MetricActivations, 1, observability.T("result", result))
	return act, err
}

func (a *Activator) activate(ctx context.Context, req ActivateRequest) (*Activation, error) {
	now := a.clock()
	key := domain.NormalizeKey(req.Key)

	if err := a.verifyOwner(ctx, req.TenantID, req.RequesterID); err != nil {
		return nil, err
	}

	current, err := a.entitlements.Get(ctx, req.TenantID)
	switch {
	case errors.Is(err, domain.ErrEntitlementNotFound):
		current = nil
	case err != nil:
		return nil, storeFailure(err)
	}
	if current.IsLive(now) {
		return nil, a.alreadyPremium(current)
	}

	l, err := a.licenses.FindByKey(ctx, key)
	switch {
	case errors.Is(err, domain.ErrLicenseNotFound):
		return nil, domain.ErrInvalidOrUsedKey
	case err != nil:
		return nil, storeFailure(err)
	}
	if l.Status != domain.LicenseStatusInactive {
		return nil, domain.ErrInvalidOrUsedKey
	}
	if l.IsPastExpiry(now) {
		a.expireUnused(ctx, l, now)
		return nil, domain.ErrLicenseExpired
	}

	plan, err := a.catalog.Plan(l.Tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrActivationFailed, err)
	}
	expiresAt := plan.ExpiresFrom(now, l.ExpiresAt)

	var (
		stale       *Revocation
		entitlement *domain.Entitlement
		event       *domain.LicenseActivated
	)
	err = sharedApplication.WithUnitOfWork(ctx, a.uow, func(ctx context.Context) error {
		e, err := a.entitlements.Get(ctx, req.TenantID)
		switch {
		case errors.Is(err, domain.ErrEntitlementNotFound):
		case err != nil:
			return err
		case e.IsLive(now):
			return a.alreadyPremium(e)
		case e.IsExpired(now):
			if stale, err = a.revoker.revokeInTx(ctx, req.TenantID, RevokeExpired, now); err != nil {
				return err
			}
		}

		if err := l.Activate(req.TenantID, now, expiresAt); err != nil {
			return err
		}
		if err := a.licenses.Transition(ctx, l, domain.LicenseStatusInactive); err != nil {
			return err
		}
		entitlement = domain.NewEntitlement(req.TenantID, plan, l.ExpiresAt, now)
		if err := a.entitlements.Upsert(ctx, entitlement); err != nil {
			return err
		}
		event = domain.NewLicenseActivated(l, req.RequesterID)
		return a.record(ctx, event)
	})
	if err != nil {
		return nil, a.translate(ctx, req.TenantID, err)
	}

	if stale != nil {
		a.revoker.announce(ctx, stale)
	}
	a.activated(ctx, l, event)

	return &Activation{License: l, View: domain.ViewOf(entitlement, plan)}, nil
}

// verifyOwner checks that requester owns the tenant. A cached owner that
// disagrees is looked up again before the request is refused. Only a tenant
// the oracle positively does not know is reported as not found.
func (a *Activator) verifyOwner(ctx context.Context, tenantID, requesterID string) error {
	owner, err := a.owners.Owner(ctx, tenantID)
	if err == nil && owner != requesterID {
		if r, ok := a.owners.(OwnerRefresher); ok {
			owner, err = r.Refresh(ctx, tenantID)
		}
	}

	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		return err
	case err != nil:
		return fmt.Errorf("%w: %w", domain.ErrOwnerUnavailable, err)
	case owner != requesterID:
		return domain.ErrNotAuthorized
	}
	return nil
}

// expireUnused moves a license past its preset expiry to expired. The caller
// reports ErrLicenseExpired regardless of the outcome.
func (a *Activator) expireUnused(ctx context.Context, l *domain.License, now time.Time) {
	from := l.Status
	if err := l.Expire(now); err != nil {
		return
	}
	event := domain.NewLicenseEnded(l)
	err := sharedApplication.WithUnitOfWork(ctx, a.uow, func(ctx context.Context) error {
		if err := a.licenses.Transition(ctx, l, from); err != nil {
			return err
		}
		return a.record(ctx, event)
	})
	if err != nil {
		a.logger.WarnContext(ctx, "failed to expire unused license", "license_id", l.ID, "error", err)
		return
	}
	a.publish(ctx, event)
}

func (a *Activator) activated(ctx context.Context, l *domain.License, event *domain.LicenseActivated) {
	a.logger.InfoContext(ctx, "license activated",
		"license_id", l.ID,
		"key", l.MaskedKey(),
		"tier", l.Tier,
		"requester_id", event.RequesterID,
	)
	a.publish(ctx, event)
	a.notify(ctx, Notification{
		Kind:        NotificationActivated,
		RecipientID: event.RequesterID,
		TenantID:    l.TenantID,
		Tier:        l.Tier,
		TierName:    a.tierName(l.Tier),
		ExpiresAt:   l.ExpiresAt,
		Activated:   true,
	})
}

// translate maps a failed activation transaction to the caller-facing error.
func (a *Activator) translate(ctx context.Context, tenantID string, err error) error {
	var already *domain.AlreadyPremiumError
	switch {
	case errors.As(err, &already):
		return already
	case errors.Is(err, domain.ErrAlreadyPremium):
		if e, gerr := a.entitlements.Get(ctx, tenantID); gerr == nil && e.IsPremium {
			return a.alreadyPremium(e)
		}
		return domain.ErrAlreadyPremium
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return domain.ErrInvalidOrUsedKey
	default:
		return storeFailure(err)
	}
}

func (a *Activator) alreadyPremium(e *domain.Entitlement) error {
	return &domain.AlreadyPremiumError{
		Tier:      e.Tier,
		TierName:  a.tierName(e.Tier),
		ExpiresAt: e.ExpiresAt,
	}
}

// storeFailure keeps transient errors retryable and reports everything else
// as a failed activation.
func storeFailure(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrActivationFailed, err)
}
