package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// ConsumerRegistry routes envelopes to the consumers of their routing key.
type ConsumerRegistry struct {
	mu        sync.RWMutex
	consumers map[string][]EventConsumer
	logger    *slog.Logger
}

// NewConsumerRegistry creates an empty registry.
func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{
		consumers: make(map[string][]EventConsumer),
		logger:    logger,
	}
}

// Register subscribes consumer to each routing key it declares.
func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range consumer.EventTypes() {
		r.consumers[key] = append(r.consumers[key], consumer)
		r.logger.Debug("registered consumer", "routing_key", key)
	}
}

// Consumers returns the consumers of routingKey.
func (r *ConsumerRegistry) Consumers(routingKey string) []EventConsumer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.consumers[routingKey])
}

// RoutingKeys lists every key with at least one consumer, sorted.
func (r *ConsumerRegistry) RoutingKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.consumers))
	for key := range r.consumers {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Dispatch hands event to every consumer of its routing key, even after one
// fails. The result is permanent only when every failure was permanent, so
// one consumer's transient error still earns the message a redelivery.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	consumers := r.Consumers(event.RoutingKey)
	if len(consumers) == 0 {
		r.logger.DebugContext(ctx, "no consumers for event", "routing_key", event.RoutingKey)
		return nil
	}

	var permanent, transient []error
	for _, consumer := range consumers {
		err := consumer.Handle(ctx, event)
		if err == nil {
			continue
		}
		r.logger.ErrorContext(ctx, "consumer failed to handle event",
			"routing_key", event.RoutingKey,
			"event_id", event.EventID,
			"permanent", IsPermanent(err),
			"error", err,
		)
		if IsPermanent(err) {
			permanent = append(permanent, err)
		} else {
			transient = append(transient, err)
		}
	}

	if len(transient) > 0 {
		return errors.Join(transient...)
	}
	return errors.Join(permanent...)
}
