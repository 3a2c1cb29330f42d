package kombu

import (
	"context"
	"io"
)

// ExchangeType represents a type of exchange.
type ExchangeType string

const (
	// ExchangeTypeDirect routes a message to bound queues where the routing key matches exactly.
	ExchangeTypeDirect ExchangeType = "direct"
	// ExchangeTypeFanout ignores the routing key, all bound queues receive a copy of the message.
	ExchangeTypeFanout ExchangeType = "fanout"
	// ExchangeTypeTopic matches the routing key against dot separated binding patterns
	// where `*` replaces one word and `#` zero or more words.
	ExchangeTypeTopic ExchangeType = "topic"
	// ExchangeTypeHeaders routes on message headers rather than the routing key.
	ExchangeTypeHeaders ExchangeType = "headers"
)

// Valid reports whether t is one of the known exchange types.
func (t ExchangeType) Valid() bool {
	switch t {
	case ExchangeTypeDirect, ExchangeTypeFanout, ExchangeTypeTopic, ExchangeTypeHeaders:
		return true
	}
	return false
}

// ErrorNotificationFunc the callback function type which receives errors from the server.
type ErrorNotificationFunc = func(e Error)

// CancelFunc stops an active consume. It is safe to call more than once.
type CancelFunc = func()

// Channel represents a single broker channel.
//
// A channel is a lightweight session multiplexed over a Connection. Every declare, publish
// and consume operation is performed on a channel rather than on the connection itself.
type Channel interface {
	io.Closer
	Notifier

	// QoS sets the prefetch count and size on a channel, limiting how many unacknowledged
	// messages may be pushed to consumers at once. global applies the limit to every
	// consumer on the channel instead of each one.
	QoS(ctx context.Context, count, size int64, global bool) error
	// CreateQueue declares a queue and returns it. An empty name asks the broker to
	// generate one, the generated name is available through Queue.Name.
	CreateQueue(ctx context.Context, name string, durable, autoDelete, exclusive bool) (Queue, error)
	// BindQueue binds a queue to an exchange.
	BindQueue(ctx context.Context, queue, exchange, routingKey string) error
	// CreateExchange declares an exchange.
	CreateExchange(ctx context.Context, name string, typ ExchangeType, durable, autoDelete bool) error
	// Publish publishes a message to an exchange using the supplied routing key.
	// An empty exchange is the broker default exchange, which routes to the queue
	// named exactly like the routing key.
	Publish(ctx context.Context, exchange, routingKey string, body io.Reader) error
	// Consume registers a consumer on a queue, deliveries are pushed to the returned channel
	// until cancel is called or the channel is closed.
	Consume(ctx context.Context, queue, consumerTag string, autoAck, exclusive bool) (msgs <-chan Message, cancel CancelFunc, err error)
	// Get performs a single retrieval from a queue. A nil message and nil error are
	// returned when the queue is empty.
	Get(ctx context.Context, queue string, autoAck bool) (Message, error)
	// Purge removes every ready message from a queue, returning the amount removed.
	Purge(ctx context.Context, queue string) (int, error)
	// IsClosed determines if the channel is closed.
	IsClosed() bool
}
