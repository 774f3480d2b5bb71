package application

import (
	"context"
	"time"

	"github.com/lycebot/premium/pkg/observability"
)

// DefaultSweepInterval is how often the worker sweeps expired entitlements.
const DefaultSweepInterval = time.Hour

// Sweeper proactively revokes entitlements whose expiry has passed.
type Sweeper struct {
	*core
	revoker *Revoker
}

// Sweep revokes every expired premium entitlement and returns how many were
// revoked. A failure on one tenant is logged and does not stop the rest.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	timer := observability.StartTimer("sweep").WithMetrics(s.metrics)

	tenants, err := s.entitlements.ListExpired(ctx, s.clock(), 0)
	if err != nil {
		timer.StopWithError(err)
		return 0, err
	}

	revoked, failed := 0, 0
	for _, tenantID := range tenants {
		if err := ctx.Err(); err != nil {
			timer.StopWithError(err)
			return revoked, err
		}
		rev, err := s.revoker.Revoke(ctx, tenantID, RevokeExpired)
		if err != nil {
			failed++
			s.logger.ErrorContext(ctx, "failed to expire entitlement", "tenant_id", tenantID, "error", err)
			continue
		}
		if rev.Revoked {
			revoked++
		}
	}

	s.metrics.Counter(observability.MetricSweepRevoked, int64(revoked))
	s.metrics.Counter(observability.MetricSweepFailures, int64(failed))
	s.metrics.Timing(observability.MetricSweepDuration, timer.Stop())

	if len(tenants) > 0 {
		s.logger.InfoContext(ctx, "expiration sweep completed",
			"candidates", len(tenants),
			"revoked", revoked,
			"failed", failed,
		)
	}
	return revoked, nil
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	s.logger.InfoContext(ctx, "expiration sweeper started", "interval", interval.String())
	s.sweepOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "expiration sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "expiration sweep failed", "error", err)
	}
}
