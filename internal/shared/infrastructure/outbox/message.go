package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lycebot/premium/internal/shared/domain"
	"github.com/lycebot/premium/internal/shared/infrastructure/eventbus"
)

// Message is a recorded event waiting for relay. Payload is the envelope
// exactly as it goes on the wire.
type Message struct {
	ID            int64
	EventID       uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	RoutingKey    string
	Payload       json.RawMessage
	CreatedAt     time.Time
	RetryCount    int
	NextRetryAt   *time.Time
	LastError     *string
}

// NewMessage encodes event as an envelope, carrying the correlation id from
// ctx so a relayed event can be traced to the request that raised it.
func NewMessage(ctx context.Context, event domain.DomainEvent) (*Message, error) {
	envelope, err := eventbus.NewEnvelope(ctx, event)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", event.RoutingKey(), err)
	}
	return &Message{
		EventID:       envelope.EventID,
		AggregateType: envelope.AggregateType,
		AggregateID:   envelope.AggregateID,
		RoutingKey:    envelope.RoutingKey,
		Payload:       body,
		CreatedAt:     envelope.OccurredAt.UTC(),
	}, nil
}
