package compat

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/nitzanm/kombu"
	"github.com/nitzanm/kombu/entity"
	"github.com/nitzanm/kombu/messaging"
)

// Publisher publishes messages to one exchange.
//
// The channel is opened from the connection unless WithChannel supplies one, in which case
// it is borrowed and left open by Close.
type Publisher struct {
	ch        kombu.Channel
	ownership Ownership
	producer  *messaging.Producer
	closed    bool
}

// NewPublisher builds the exchange from opts and declares it. conn may be nil when
// WithChannel is given.
func NewPublisher(ctx context.Context, conn kombu.Connection, opts ...Option) (*Publisher, error) {
	cfg := newConfig(opts)

	p := &Publisher{ch: cfg.channel, ownership: Borrowed}
	if p.ch == nil {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		p.ch, p.ownership = ch, Owned
	}

	producer, err := messaging.NewProducer(ctx, p.ch, cfg.exchangeEntity(), messaging.ProducerConfig{
		RoutingKey: cfg.RoutingKey,
	})
	if err != nil {
		if p.ownership == Owned {
			_ = p.ch.Close()
		}
		return nil, err
	}
	p.producer = producer
	return p, nil
}

// Send publishes body to the exchange with the configured routing key unless
// overridden with messaging.RoutingKey. It returns ErrClosed after Close.
func (p *Publisher) Send(ctx context.Context, body io.Reader, opts ...messaging.PublishOption) error {
	if p.closed {
		return ErrClosed
	}
	return p.producer.Publish(ctx, body, opts...)
}

// Revive moves the publisher onto ch after the previous channel died and declares the
// exchange again. The ownership is unchanged.
func (p *Publisher) Revive(ctx context.Context, ch kombu.Channel) error {
	if p.closed {
		return ErrClosed
	}
	p.ch = ch
	return p.producer.Revive(ctx, ch)
}

// Close releases the publisher, closing the channel when it is owned. Only the first
// call has an effect.
func (p *Publisher) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.ownership == Owned && p.ch != nil && !p.ch.IsClosed() {
		err = p.ch.Close()
	}
	_ = p.producer.Close()

	log.WithFields(log.Fields{
		"exchange":  p.producer.Exchange().Name,
		"ownership": p.ownership,
	}).Debug("compat: publisher closed")
	return err
}

// Backend returns the underlying channel.
func (p *Publisher) Backend() kombu.Channel { return p.ch }

// Ownership tells whether Close closes the channel.
func (p *Publisher) Ownership() Ownership { return p.ownership }

// Exchange returns the exchange messages are published to.
func (p *Publisher) Exchange() entity.Exchange { return p.producer.Exchange() }

// RoutingKey returns the routing key used by Send.
func (p *Publisher) RoutingKey() string { return p.producer.RoutingKey() }

// IsClosed reports whether Close was called.
func (p *Publisher) IsClosed() bool { return p.closed }
