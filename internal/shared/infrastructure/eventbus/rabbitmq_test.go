package eventbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

type errConsumer struct{ err error }

func (c errConsumer) EventTypes() []string { return []string{"billing.purchase.completed"} }

func (c errConsumer) Handle(context.Context, *ConsumedEvent) error { return c.err }

func TestRabbitMQConsumer_Deliver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name        string
		body        string
		err         error
		wantAck     bool
		wantRequeue bool
	}{
		{"handled", `{}`, nil, true, false},
		{"transient failure is requeued", `{}`, errors.New("database is locked"), false, true},
		{"permanent failure is dead-lettered", `{}`, Permanent(errors.New("unknown tier")), false, false},
		{"undecodable body is dead-lettered", `{"payload":`, nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewConsumerRegistry(logger)
			registry.Register(errConsumer{err: tt.err})
			c := &RabbitMQConsumer{registry: registry, logger: logger}

			ack := &ackRecorder{}
			c.deliver(context.Background(), amqp.Delivery{
				Acknowledger: ack,
				RoutingKey:   "billing.purchase.completed",
				Body:         []byte(tt.body),
			})

			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, !tt.wantAck, ack.nacked)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
		})
	}
}

func TestDeadLetterNames(t *testing.T) {
	exchange, queue := deadLetterNames("premium.purchases")
	assert.Equal(t, "premium.purchases.dlx", exchange)
	assert.Equal(t, "premium.purchases.dead", queue)
}
