package rabbitmq

import (
	"bytes"
	"context"
	"io"

	"github.com/rabbitmq/amqp091-go"
)

// message implements kombu.Message over an amqp091 delivery.
type message struct {
	ctx context.Context
	amqp091.Delivery
}

// Context returns the context of the consume or get the message came from.
func (m *message) Context() context.Context {
	return m.ctx
}

// Ack acknowledges the message.
func (m *message) Ack() error {
	return m.Delivery.Ack(false)
}

// Nack negatively acknowledges the message.
func (m *message) Nack(requeue bool) error {
	return m.Delivery.Nack(false, requeue)
}

// Body returns a fresh reader over the message body on every call.
func (m *message) Body() io.Reader {
	return bytes.NewReader(m.Delivery.Body)
}

// Redelivered whether the message has been delivered previously.
func (m *message) Redelivered() bool {
	return m.Delivery.Redelivered
}

func (m *message) Exchange() string    { return m.Delivery.Exchange }
func (m *message) RoutingKey() string  { return m.Delivery.RoutingKey }
func (m *message) ContentType() string { return m.Delivery.ContentType }
