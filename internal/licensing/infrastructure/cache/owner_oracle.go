package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/lycebot/premium/internal/licensing/application"
	"github.com/lycebot/premium/pkg/observability"
)

// Store holds owner ids per tenant.
type Store interface {
	Get(ctx context.Context, tenantID string) (string, bool, error)
	Set(ctx context.Context, tenantID, owner string, ttl time.Duration) error
	Delete(ctx context.Context, tenantID string) error
}

// OwnerOracle answers from the store and falls back to another oracle on a
// miss. Only successful lookups are kept; errors always reach the caller.
type OwnerOracle struct {
	next    application.OwnerOracle
	store   Store
	ttl     time.Duration
	metrics observability.Metrics
	logger  *slog.Logger
}

// NewOwnerOracle caches next's answers in store for ttl. A ttl of zero or
// less disables caching.
func NewOwnerOracle(next application.OwnerOracle, store Store, ttl time.Duration, metrics observability.Metrics, logger *slog.Logger) *OwnerOracle {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OwnerOracle{next: next, store: store, ttl: ttl, metrics: metrics, logger: logger}
}

// Owner returns the tenant's owner. A failing store is treated as a miss.
func (o *OwnerOracle) Owner(ctx context.Context, tenantID string) (string, error) {
	if o.ttl <= 0 {
		return o.next.Owner(ctx, tenantID)
	}

	owner, ok, err := o.store.Get(ctx, tenantID)
	if err != nil {
		o.logger.DebugContext(ctx, "owner cache read failed", "tenant_id", tenantID, "error", err)
	}
	if err == nil && ok {
		o.metrics.Counter(observability.MetricOwnerCacheHits, 1)
		return owner, nil
	}
	o.metrics.Counter(observability.MetricOwnerCacheMisses, 1)
	return o.Refresh(ctx, tenantID)
}

// Refresh looks the owner up again and replaces the cached entry. A failed
// lookup drops the entry.
func (o *OwnerOracle) Refresh(ctx context.Context, tenantID string) (string, error) {
	owner, err := o.next.Owner(ctx, tenantID)
	if o.ttl <= 0 {
		return owner, err
	}
	if err != nil {
		if derr := o.store.Delete(ctx, tenantID); derr != nil {
			o.logger.DebugContext(ctx, "owner cache delete failed", "tenant_id", tenantID, "error", derr)
		}
		return "", err
	}
	if err := o.store.Set(ctx, tenantID, owner, o.ttl); err != nil {
		o.logger.DebugContext(ctx, "owner cache write failed", "tenant_id", tenantID, "error", err)
	}
	return owner, nil
}

var (
	_ application.OwnerOracle    = (*OwnerOracle)(nil)
	_ application.OwnerRefresher = (*OwnerOracle)(nil)
)
