package rabbit

import (
	"context"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	ch    *amqp.Channel
	queue string
}

// NewConsumer declares a durable queue bound to exchange for each routing key.
// prefetch caps unacknowledged deliveries held by this consumer.
func NewConsumer(conn *amqp.Connection, exchange, queue string, keys []string, prefetch int) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "declare queue %s", queue)
	}
	for _, key := range keys {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			return nil, errors.Wrapf(err, "bind %s to %s", key, q.Name)
		}
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, errors.Wrap(err, "set qos")
	}
	return &Consumer{ch: ch, queue: q.Name}, nil
}

// Consume starts manual-ack delivery. The channel closes when ctx is done.
func (c *Consumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "consume %s", c.queue)
	}
	return deliveries, nil
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
