package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lycebot/premium/pkg/observability"
)

const defaultSideEffectTimeout = 10 * time.Second

// sideEffects runs post-commit work (notifications, event publishing) off the
// caller's path. Failures are logged and counted; they never reach the caller.
type sideEffects struct {
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *slog.Logger
	metrics observability.Metrics
}

func newSideEffects(timeout time.Duration, logger *slog.Logger, metrics observability.Metrics) *sideEffects {
	if timeout <= 0 {
		timeout = defaultSideEffectTimeout
	}
	return &sideEffects{timeout: timeout, logger: logger, metrics: metrics}
}

// Go runs fn in the background with a context detached from the caller's
// cancellation but bounded by the side-effect timeout.
func (s *sideEffects) Go(ctx context.Context, op string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		err := s.run(ctx, fn)
		if err != nil {
			s.metrics.Counter(observability.MetricNotificationsFailed, 1, observability.T("operation", op))
			s.logger.WarnContext(ctx, "side effect failed", "operation", op, "error", err)
			return
		}
		s.metrics.Counter(observability.MetricNotificationsSent, 1, observability.T("operation", op))
	}()
}

func (s *sideEffects) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every started side effect has finished.
func (s *sideEffects) Wait() {
	s.wg.Wait()
}
