package memory

import (
	"bytes"
	"context"
	"io"
)

// message a delivered message.
type message struct {
	ctx     context.Context
	d       *delivery
	queue   string
	ch      *channel
	autoAck bool

	redelivered bool
}

func (m *message) Context() context.Context { return m.ctx }

// Ack acknowledges the message.
func (m *message) Ack() error { return m.ch.settle(m, false) }

// Nack rejects the message, putting it back at the head of its queue when requeue is set.
func (m *message) Nack(requeue bool) error { return m.ch.settle(m, requeue) }

func (m *message) Body() io.Reader     { return bytes.NewReader(m.d.body) }
func (m *message) Redelivered() bool   { return m.redelivered }
func (m *message) Exchange() string    { return m.d.exchange }
func (m *message) RoutingKey() string  { return m.d.routingKey }
func (m *message) ContentType() string { return m.d.contentType }
