package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lycebot/premium/internal/licensing/domain"
	sharedApplication "github.com/lycebot/premium/internal/shared/application"
	"github.com/lycebot/premium/pkg/observability"
)

const maxIssueAttempts = 3

// IssueRequest asks for a new inactive license.
type IssueRequest struct {
	Tier        domain.Tier
	PurchaserID string
	Note        string
	// ExpiresAt presets a redeem-by expiry. Ignored for non-expiring tiers.
	ExpiresAt *time.Time
}

// IssuedLicense is what the purchaser or admin receives.
type IssuedLicense struct {
	LicenseID  uuid.UUID
	Key        string
	Tier       domain.Tier
	TierName   string
	PriceCents int64
	Currency   string
	Features   domain.FeatureSet
	ExpiresAt  *time.Time
}

// Issuer creates licenses.
type Issuer struct {
	*core
	keys *domain.KeyGenerator
}

// Issue stores a new inactive license, retrying with a fresh key when the
// generated one collides.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*IssuedLicense, error) {
	plan, err := i.catalog.Plan(req.Tier)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		key, err := i.keys.Generate(plan.Tier)
		if err != nil {
			return nil, fmt.Errorf("generate license key: %w", err)
		}

		l := domain.NewLicense(key, plan, req.PurchaserID, req.Note, req.ExpiresAt, i.clock())
		event := domain.NewLicenseIssued(l)
		err = sharedApplication.WithUnitOfWork(ctx, i.uow, func(ctx context.Context) error {
			if err := i.licenses.Create(ctx, l); err != nil {
				return err
			}
			return i.record(ctx, event)
		})
		if err == nil {
			i.issued(ctx, l, event)
			return &IssuedLicense{
				LicenseID:  l.ID,
				Key:        l.Key,
				Tier:       plan.Tier,
				TierName:   plan.Name,
				PriceCents: plan.PriceCents,
				Currency:   plan.Currency,
				Features:   plan.Features,
				ExpiresAt:  l.ExpiresAt,
			}, nil
		}
		if !errors.Is(err, domain.ErrDuplicateKey) {
			return nil, err
		}
		i.logger.WarnContext(ctx, "license key collision, retrying", "attempt", attempt, "tier", plan.Tier)
	}

	return nil, fmt.Errorf("issue %s license after %d attempts: %w", plan.Tier, maxIssueAttempts, domain.ErrDuplicateKey)
}

func (i *Issuer) issued(ctx context.Context, l *domain.License, event *domain.LicenseIssued) {
	i.metrics.Counter(observability.MetricLicensesIssued, 1, observability.T("tier", string(l.Tier)))
	i.logger.InfoContext(ctx, "license issued",
		"license_id", l.ID,
		"key", l.MaskedKey(),
		"tier", l.Tier,
		"purchaser_id", l.PurchaserID,
	)
	i.publish(ctx, event)
}
