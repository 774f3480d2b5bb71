package application

import (
	"context"
	"fmt"

	"github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/pkg/observability"
)

// Gate guards premium features. It fails closed: when the entitlement cannot
// be resolved the feature is denied.
type Gate struct {
	*core
	resolver *Resolver
}

// Allow reports whether tenantID may use feature.
func (g *Gate) Allow(ctx context.Context, tenantID string, feature domain.Feature) bool {
	allowed, err := g.resolver.HasFeature(ctx, tenantID, feature)
	if err != nil {
		g.logger.WarnContext(ctx, "feature check failed, denying",
			"tenant_id", tenantID,
			"feature", feature,
			"error", err,
		)
		allowed = false
	}
	g.metrics.Counter(observability.MetricFeatureChecks, 1,
		observability.T("feature", string(feature)),
		observability.T("allowed", fmt.Sprint(allowed)),
	)
	return allowed
}

// Require returns ErrFeatureNotEntitled unless tenantID may use feature.
func (g *Gate) Require(ctx context.Context, tenantID string, feature domain.Feature) error {
	if !g.Allow(ctx, tenantID, feature) {
		return fmt.Errorf("%w: %s", domain.ErrFeatureNotEntitled, feature)
	}
	return nil
}
