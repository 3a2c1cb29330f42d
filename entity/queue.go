package entity

import (
	"context"

	"github.com/nitzanm/kombu"
)

// Queue describes a queue and the exchange it is bound to with RoutingKey.
// A queue on the default exchange is reachable by publishing with its name as routing key.
type Queue struct {
	Name       string
	Exchange   Exchange
	RoutingKey string
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	// NoAck consumes the queue without acknowledgements regardless of the consumer policy.
	NoAck bool
}

// Declare declares the exchange, the queue and the binding between them on ch.
// The returned copy carries the broker generated name when q.Name was empty.
func (q Queue) Declare(ctx context.Context, ch kombu.Channel) (Queue, error) {
	if err := q.Exchange.Declare(ctx, ch); err != nil {
		return q, err
	}

	declared, err := ch.CreateQueue(ctx, q.Name, q.Durable, q.AutoDelete, q.Exclusive)
	if err != nil {
		return q, err
	}
	q.Name = declared.Name()

	if q.Exchange.IsDefault() {
		return q, nil
	}
	return q, declared.Bind(ctx, q.Exchange.Name, q.RoutingKey)
}

// Get performs a single retrieval from the queue, nil when it is empty.
func (q Queue) Get(ctx context.Context, ch kombu.Channel, noAck bool) (kombu.Message, error) {
	return ch.Get(ctx, q.Name, noAck || q.NoAck)
}

// Purge removes every ready message from the queue.
func (q Queue) Purge(ctx context.Context, ch kombu.Channel) (int, error) {
	return ch.Purge(ctx, q.Name)
}

// Consume registers tag as a consumer of the queue on ch.
func (q Queue) Consume(ctx context.Context, ch kombu.Channel, tag string, noAck bool) (<-chan kombu.Message, kombu.CancelFunc, error) {
	return ch.Consume(ctx, q.Name, tag, noAck || q.NoAck, q.Exclusive)
}
