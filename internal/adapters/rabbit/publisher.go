package rabbit

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
)

const publishAttempts = 3

type Publisher struct {
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

// Publish sends msg with key, retrying transient channel errors.
func (p *Publisher) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	if msg.DeliveryMode == 0 {
		msg.DeliveryMode = amqp.Persistent
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	var err error
	for i := 0; i < publishAttempts; i++ {
		if i > 0 {
			observability.RabbitPublishRetries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(1<<i) * 100 * time.Millisecond):
			}
		}
		if err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg); err == nil {
			return nil
		}
	}
	return errors.Mark(errors.Wrapf(err, "publish %s", key), domain.ErrUpstream)
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}
