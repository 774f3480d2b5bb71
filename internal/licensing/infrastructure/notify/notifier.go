// Package notify delivers user notifications. The bot process consumes
// premium.notification.* messages from the bus and sends the direct messages.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lycebot/premium/internal/licensing/application"
	"github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/internal/shared/infrastructure/eventbus"
	"github.com/lycebot/premium/pkg/observability"
)

// RoutingKeyPrefix prefixes notification routing keys, followed by the kind.
const RoutingKeyPrefix = "premium.notification."

// AggregateType marks notification envelopes.
const AggregateType = "notification"

// RoutingKey returns the routing key for a notification kind.
func RoutingKey(kind application.NotificationKind) string {
	return RoutingKeyPrefix + string(kind)
}

// BusNotifier publishes notifications on the event bus.
type BusNotifier struct {
	publisher eventbus.Publisher
	now       func() time.Time
}

// NewBusNotifier creates a notifier on publisher.
func NewBusNotifier(publisher eventbus.Publisher) *BusNotifier {
	return &BusNotifier{publisher: publisher, now: time.Now}
}

// Notify publishes n as an envelope.
func (b *BusNotifier) Notify(ctx context.Context, n application.Notification) error {
	if n.RecipientID == "" {
		return fmt.Errorf("notification %s has no recipient", n.Kind)
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	envelope := eventbus.ConsumedEvent{
		EventID:       uuid.New(),
		AggregateType: AggregateType,
		RoutingKey:    RoutingKey(n.Kind),
		OccurredAt:    b.now().UTC(),
		Payload:       payload,
		Metadata: eventbus.EventMetadata{
			CorrelationID: observability.CorrelationIDFromContext(ctx),
		},
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode notification envelope: %w", err)
	}
	return b.publisher.Publish(ctx, envelope.RoutingKey, body)
}

// LogNotifier writes notifications to the log. License keys are masked.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs through logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs n.
func (l *LogNotifier) Notify(ctx context.Context, n application.Notification) error {
	l.logger.InfoContext(ctx, "notification",
		"kind", n.Kind,
		"recipient_id", n.RecipientID,
		"tenant_id", n.TenantID,
		"tier", n.Tier,
		"key", domain.MaskKey(n.LicenseKey),
	)
	return nil
}

var (
	_ application.Notifier = (*BusNotifier)(nil)
	_ application.Notifier = (*LogNotifier)(nil)
)
