package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lycebot/premium/internal/billing/domain"
	"github.com/lycebot/premium/internal/shared/infrastructure/eventbus"
	"github.com/lycebot/premium/pkg/observability"
)

// PurchaseConsumer feeds payment provider facts from the event bus into a
// PurchaseHandler.
type PurchaseConsumer struct {
	handler *PurchaseHandler
}

// NewPurchaseConsumer creates a consumer for handler.
func NewPurchaseConsumer(handler *PurchaseHandler) *PurchaseConsumer {
	return &PurchaseConsumer{handler: handler}
}

// EventTypes returns the routing keys this consumer handles.
func (c *PurchaseConsumer) EventTypes() []string {
	return []string{
		domain.RoutingKeyPurchaseCompleted,
		domain.RoutingKeySubscriptionCanceled,
	}
}

// Handle decodes the event payload and dispatches it. Malformed facts are
// reported as permanent so the broker does not redeliver them.
func (c *PurchaseConsumer) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	err := c.handle(ctx, event)
	if errors.Is(err, domain.ErrInvalidPurchase) {
		err = eventbus.Permanent(err)
	}

	result := "ok"
	switch {
	case eventbus.IsPermanent(err):
		result = "rejected"
	case err != nil:
		result = "retry"
	}
	c.handler.metrics.Counter(observability.MetricEventsConsumed, 1,
		observability.T("routing_key", event.RoutingKey),
		observability.T("result", result),
	)
	return err
}

func (c *PurchaseConsumer) handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	if event.Metadata.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, event.Metadata.CorrelationID)
	}

	switch event.RoutingKey {
	case domain.RoutingKeyPurchaseCompleted:
		var p domain.PurchaseCompleted
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return eventbus.Permanent(fmt.Errorf("decode purchase: %w", err))
		}
		_, err := c.handler.HandlePurchase(ctx, p)
		return err

	case domain.RoutingKeySubscriptionCanceled:
		var s domain.SubscriptionCanceled
		if err := json.Unmarshal(event.Payload, &s); err != nil {
			return eventbus.Permanent(fmt.Errorf("decode subscription cancellation: %w", err))
		}
		return c.handler.HandleSubscriptionCanceled(ctx, s)

	default:
		return eventbus.Permanent(fmt.Errorf("unsupported routing key %q", event.RoutingKey))
	}
}

var _ eventbus.EventConsumer = (*PurchaseConsumer)(nil)
