// Package eventbus moves license events and payment facts between the
// premium services. Messages are JSON envelopes on a RabbitMQ topic exchange,
// or on an in-process bus when no broker is configured.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lycebot/premium/internal/shared/domain"
	"github.com/lycebot/premium/pkg/observability"
)

// Publisher sends an encoded envelope under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// EventConsumer handles the routing keys it declares.
type EventConsumer interface {
	EventTypes() []string
	Handle(ctx context.Context, event *ConsumedEvent) error
}

// ConsumedEvent is the envelope every message carries.
type ConsumedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      EventMetadata   `json:"metadata,omitempty"`
}

// EventMetadata ties an envelope to the request or purchase that caused it.
type EventMetadata struct {
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewEnvelope wraps a domain event. The event's exported fields become the
// payload and the correlation id is taken from ctx.
func NewEnvelope(ctx context.Context, event domain.DomainEvent) (*ConsumedEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.RoutingKey(), err)
	}
	return &ConsumedEvent{
		EventID:       event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		RoutingKey:    event.RoutingKey(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
		Metadata:      EventMetadata{CorrelationID: observability.CorrelationIDFromContext(ctx)},
	}, nil
}

// decodeEnvelope reads a message body. A body without a routing key takes
// the one it was delivered under.
func decodeEnvelope(body []byte, routingKey string) (*ConsumedEvent, error) {
	event := &ConsumedEvent{}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}
	return event, nil
}

// DomainEventPublisher publishes domain events as envelopes on a Publisher.
type DomainEventPublisher struct {
	publisher Publisher
}

// NewDomainEventPublisher creates a DomainEventPublisher on publisher.
func NewDomainEventPublisher(publisher Publisher) *DomainEventPublisher {
	return &DomainEventPublisher{publisher: publisher}
}

// PublishEvents publishes events in order and stops at the first failure.
func (p *DomainEventPublisher) PublishEvents(ctx context.Context, events ...domain.DomainEvent) error {
	for _, event := range events {
		envelope, err := NewEnvelope(ctx, event)
		if err != nil {
			return err
		}
		body, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("encode %s envelope: %w", event.RoutingKey(), err)
		}
		if err := p.publisher.Publish(ctx, event.RoutingKey(), body); err != nil {
			return fmt.Errorf("publish %s: %w", event.RoutingKey(), err)
		}
	}
	return nil
}

// ErrPermanent marks a handler failure that retrying cannot fix. The
// RabbitMQ consumer dead-letters such messages instead of requeueing them.
var ErrPermanent = errors.New("permanent event failure")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string   { return e.err.Error() }
func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// Permanent wraps err so that errors.Is(err, ErrPermanent) holds.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
