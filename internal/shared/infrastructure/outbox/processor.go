package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lycebot/premium/internal/shared/infrastructure/eventbus"
	"github.com/lycebot/premium/pkg/observability"
)

const purgeEvery = time.Hour

// ProcessorConfig tunes the relay loop.
type ProcessorConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxRetries is the number of failed publishes after which a message is
	// dead-lettered. Zero or less dead-letters on the first failure.
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	// Retention is how long published messages are kept. Zero keeps them.
	Retention time.Duration
}

// DefaultProcessorConfig polls every second and keeps a week of history.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
		Retention:        7 * 24 * time.Hour,
	}
}

// Stats is a snapshot of what a Processor has done since it was built.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// Processor relays recorded messages to a Publisher. Delivery is at least
// once: a message published but not yet marked goes out again next batch.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	cfg       ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics
	now       func() time.Time

	mu    sync.Mutex
	stats Stats
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithMetrics records relay counters and the lag gauge on m.
func WithMetrics(m observability.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a Processor. Zero poll interval and batch size take
// their defaults.
func NewProcessor(repo Repository, publisher eventbus.Publisher, cfg ProcessorConfig, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	defaults := DefaultProcessorConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.RetryBackoffBase <= 0 {
		cfg.RetryBackoffBase = defaults.RetryBackoffBase
	}
	if cfg.RetryBackoffMax <= 0 {
		cfg.RetryBackoffMax = defaults.RetryBackoffMax
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Processor{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "outbox"),
		metrics:   observability.NoopMetrics{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run relays a batch every poll interval until ctx is cancelled, then
// returns nil. A failed batch is logged and tried again on the next tick.
func (p *Processor) Run(ctx context.Context) error {
	p.update(func(s *Stats) { s.IsRunning = true })
	defer p.update(func(s *Stats) { s.IsRunning = false })

	p.logger.Info("outbox relay started", "poll_interval", p.cfg.PollInterval, "batch_size", p.cfg.BatchSize)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var purgedAt time.Time
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		}

		if err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("outbox batch failed", "error", err)
		}
		if p.cfg.Retention > 0 && p.now().Sub(purgedAt) >= purgeEvery {
			p.purge(ctx)
			purgedAt = p.now()
		}
	}
}

// ProcessOnce relays one batch of due messages. Only a failure to read the
// outbox is returned; publish failures are recorded on the messages.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	now := p.now().UTC()
	batch, err := p.repo.Pending(ctx, now, p.cfg.BatchSize)
	if err != nil {
		p.update(func(s *Stats) { s.setError(err, now) })
		return err
	}

	p.observeLag(batch, now)
	for _, msg := range batch {
		p.relay(ctx, msg, now)
	}
	return nil
}

func (p *Processor) relay(ctx context.Context, msg *Message, now time.Time) {
	log := p.logger.With("outbox_id", msg.ID, "event_id", msg.EventID, "routing_key", msg.RoutingKey)
	tag := observability.T("routing_key", msg.RoutingKey)

	pubErr := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload)
	if pubErr == nil {
		if err := p.repo.MarkPublished(ctx, msg.ID, now); err != nil {
			log.ErrorContext(ctx, "published message not marked, it will be sent again", "error", err)
			return
		}
		p.update(func(s *Stats) { s.PublishedCount++ })
		p.metrics.Counter(observability.MetricEventsPublished, 1, tag)
		return
	}

	attempt := msg.RetryCount + 1
	if attempt >= p.cfg.MaxRetries {
		log.ErrorContext(ctx, "dead-lettering outbox message", "attempt", attempt, "error", pubErr)
		p.update(func(s *Stats) {
			s.DeadCount++
			s.setError(pubErr, now)
		})
		p.metrics.Counter(observability.MetricOutboxDead, 1, tag)
		if err := p.repo.MarkDead(ctx, msg.ID, pubErr.Error(), now); err != nil {
			log.ErrorContext(ctx, "mark outbox message dead", "error", err)
		}
		return
	}

	next := now.Add(p.backoff(attempt))
	log.WarnContext(ctx, "outbox publish failed", "attempt", attempt, "next_retry_at", next, "error", pubErr)
	p.update(func(s *Stats) {
		s.FailedCount++
		s.setError(pubErr, now)
	})
	p.metrics.Counter(observability.MetricOutboxFailed, 1, tag)
	if err := p.repo.MarkFailed(ctx, msg.ID, pubErr.Error(), next); err != nil {
		log.ErrorContext(ctx, "mark outbox message failed", "error", err)
	}
}

// backoff is the base doubled for each earlier attempt, capped at the max.
func (p *Processor) backoff(attempt int) time.Duration {
	d := p.cfg.RetryBackoffBase
	for ; attempt > 1; attempt-- {
		if d >= p.cfg.RetryBackoffMax/2 {
			return p.cfg.RetryBackoffMax
		}
		d *= 2
	}
	return min(d, p.cfg.RetryBackoffMax)
}

func (p *Processor) purge(ctx context.Context) {
	n, err := p.repo.Purge(ctx, p.now().UTC().Add(-p.cfg.Retention))
	if err != nil {
		p.logger.WarnContext(ctx, "outbox purge failed", "error", err)
		return
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "purged published outbox messages", "count", n)
	}
}

func (p *Processor) observeLag(batch []*Message, now time.Time) {
	var oldest *time.Time
	for _, msg := range batch {
		if oldest == nil || msg.CreatedAt.Before(*oldest) {
			created := msg.CreatedAt
			oldest = &created
		}
	}

	lag := 0.0
	if oldest != nil {
		lag = now.Sub(*oldest).Seconds()
	}
	p.update(func(s *Stats) {
		s.LastProcessedAt = &now
		s.OldestMessageAt = oldest
		s.LagSeconds = lag
	})
	p.metrics.Gauge(observability.MetricOutboxLag, lag)
}

// Stats returns a snapshot of the processor's counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// LagCheck returns a health check that fails while the oldest pending
// message seen in the last batch is older than maxLag.
func (p *Processor) LagCheck(maxLag time.Duration) func(context.Context) error {
	return func(context.Context) error {
		if lag := p.Stats().LagSeconds; lag > maxLag.Seconds() {
			return fmt.Errorf("outbox lag %.0fs exceeds %s", lag, maxLag)
		}
		return nil
	}
}

func (p *Processor) update(fn func(*Stats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.stats)
}

func (s *Stats) setError(err error, at time.Time) {
	s.LastError = err.Error()
	s.LastErrorAt = &at
}
