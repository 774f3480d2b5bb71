package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lycebot/premium/internal/licensing/domain"
	sharedApplication "github.com/lycebot/premium/internal/shared/application"
	sharedDomain "github.com/lycebot/premium/internal/shared/domain"
	"github.com/lycebot/premium/pkg/observability"
)

// Deps are the collaborators of the licensing services. Licenses,
// Entitlements, UnitOfWork and Owners are required; the rest have defaults.
type Deps struct {
	Licenses     domain.LicenseRepository
	Entitlements domain.EntitlementRepository
	UnitOfWork   sharedApplication.UnitOfWork
	Owners       OwnerOracle

	Catalog  *domain.Catalog
	Keys     *domain.KeyGenerator
	Notifier Notifier
	Events   EventPublisher
	// Outbox, when set, replaces Events: events are recorded in the same
	// transaction and relayed later.
	Outbox   EventRecorder
	Metrics  observability.Metrics
	Logger   *slog.Logger
	Clock    func() time.Time

	// SideEffectTimeout bounds each notification or event publish.
	SideEffectTimeout time.Duration
}

type core struct {
	licenses     domain.LicenseRepository
	entitlements domain.EntitlementRepository
	uow          sharedApplication.UnitOfWork
	owners       OwnerOracle
	catalog      *domain.Catalog
	notifier     Notifier
	events       EventPublisher
	outbox       EventRecorder
	metrics      observability.Metrics
	logger       *slog.Logger
	now          func() time.Time
	effects      *sideEffects
}

func newCore(d Deps) (*core, error) {
	switch {
	case d.Licenses == nil:
		return nil, errors.New("licensing: license repository is required")
	case d.Entitlements == nil:
		return nil, errors.New("licensing: entitlement repository is required")
	case d.UnitOfWork == nil:
		return nil, errors.New("licensing: unit of work is required")
	case d.Owners == nil:
		return nil, errors.New("licensing: owner oracle is required")
	}

	c := &core{
		licenses:     d.Licenses,
		entitlements: d.Entitlements,
		uow:          d.UnitOfWork,
		owners:       d.Owners,
		catalog:      d.Catalog,
		notifier:     d.Notifier,
		events:       d.Events,
		outbox:       d.Outbox,
		metrics:      d.Metrics,
		logger:       d.Logger,
		now:          d.Clock,
	}
	if c.catalog == nil {
		c.catalog = domain.DefaultCatalog()
	}
	if c.notifier == nil {
		c.notifier = noopNotifier{}
	}
	if c.events == nil {
		c.events = noopEventPublisher{}
	}
	if c.metrics == nil {
		c.metrics = observability.NoopMetrics{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.effects = newSideEffects(d.SideEffectTimeout, c.logger, c.metrics)
	return c, nil
}

func (c *core) clock() time.Time {
	return c.now().UTC()
}

// tierName returns the display name of a tier, falling back to the tier itself.
func (c *core) tierName(t domain.Tier) string {
	plan, err := c.catalog.Plan(t)
	if err != nil || plan.Name == "" {
		return string(t)
	}
	return plan.Name
}

// record writes events to the outbox inside the caller's unit of work. It is
// a no-op without an outbox.
func (c *core) record(ctx context.Context, events ...sharedDomain.DomainEvent) error {
	if c.outbox == nil || len(events) == 0 {
		return nil
	}
	if err := c.outbox.Record(ctx, events...); err != nil {
		return fmt.Errorf("record events: %w", err)
	}
	return nil
}

// publish sends events after commit unless they already went to the outbox.
func (c *core) publish(ctx context.Context, events ...sharedDomain.DomainEvent) {
	if c.outbox != nil || len(events) == 0 {
		return
	}
	c.effects.Go(ctx, "publish_events", func(ctx context.Context) error {
		return c.events.PublishEvents(ctx, events...)
	})
}

func (c *core) notify(ctx context.Context, n Notification) {
	c.effects.Go(ctx, "notify_"+string(n.Kind), func(ctx context.Context) error {
		return c.notifier.Notify(ctx, n)
	})
}

// notifyOwner resolves the tenant owner in the background and notifies them.
func (c *core) notifyOwner(ctx context.Context, n Notification) {
	c.effects.Go(ctx, "notify_"+string(n.Kind), func(ctx context.Context) error {
		owner, err := c.owners.Owner(ctx, n.TenantID)
		if err != nil {
			return fmt.Errorf("resolve owner of %s: %w", n.TenantID, err)
		}
		n.RecipientID = owner
		return c.notifier.Notify(ctx, n)
	})
}
