package kombu

import (
	"context"
	"io"
)

// Message represents an inbound message, either pushed to a consumer or retrieved with Get.
type Message interface {
	// Context returns a scoped context for this specific message.
	Context() context.Context
	// Ack acknowledges that the message was processed.
	Ack() error
	// Nack acknowledges that processing the message failed.
	Nack(requeue bool) error
	// Body returns the message body as a reader.
	Body() io.Reader
	// Redelivered whether the message has been delivered previously.
	Redelivered() bool
	// Exchange the exchange the message was published to.
	Exchange() string
	// RoutingKey the routing key the message was published with.
	RoutingKey() string
	// ContentType the MIME type of the body.
	ContentType() string
}

// Queue represents a declared queue bound to the channel it was declared on.
type Queue interface {
	// Name returns the name of the queue.
	Name() string
	// Bind binds this queue to an exchange using the routing key.
	Bind(ctx context.Context, exchange, routingKey string) error
	// Consume starts consuming messages from this queue.
	Consume(ctx context.Context, consumerTag string, autoAck, exclusive bool) (messages <-chan Message, cancel CancelFunc, err error)
	// Get performs a single retrieval from this queue, nil when empty.
	Get(ctx context.Context, autoAck bool) (Message, error)
	// Purge removes every ready message from this queue.
	Purge(ctx context.Context) (int, error)
}
