package rabbitmq

import (
	"context"

	"github.com/rabbitmq/amqp091-go"

	"github.com/nitzanm/kombu"
)

// queue a declared amqp091.Queue bound to the channel it was declared on.
type queue struct {
	amqp091.Queue
	ch kombu.Channel
}

// Name returns the name of the queue, generated by the broker when declared without one.
func (q *queue) Name() string { return q.Queue.Name }

// Bind binds this queue to the requested exchange using the routing key.
func (q *queue) Bind(ctx context.Context, exchange, routingKey string) error {
	return q.ch.BindQueue(ctx, q.Name(), exchange, routingKey)
}

// Consume consumes from this queue on the channel it was declared on.
func (q *queue) Consume(ctx context.Context, consumerTag string, autoAck, exclusive bool) (<-chan kombu.Message, kombu.CancelFunc, error) {
	return q.ch.Consume(ctx, q.Name(), consumerTag, autoAck, exclusive)
}

// Get retrieves a single message from this queue.
func (q *queue) Get(ctx context.Context, autoAck bool) (kombu.Message, error) {
	return q.ch.Get(ctx, q.Name(), autoAck)
}

// Purge removes every ready message from this queue.
func (q *queue) Purge(ctx context.Context) (int, error) {
	return q.ch.Purge(ctx, q.Name())
}
