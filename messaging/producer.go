package messaging

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/nitzanm/kombu"
	"github.com/nitzanm/kombu/entity"
)

// ProducerConfig configures a Producer. The zero value publishes with an empty routing key
// and declares the exchange.
type ProducerConfig struct {
	// RoutingKey the routing key used when Publish is not given one.
	RoutingKey string
	// NoDeclare skips declaring the exchange on construction and revival.
	NoDeclare bool
}

// Producer publishes messages to one exchange over a channel it does not own.
type Producer struct {
	ch       kombu.Channel
	exchange entity.Exchange
	cfg      ProducerConfig
	closed   bool
}

// NewProducer binds exchange to ch, declaring it unless cfg.NoDeclare is set.
func NewProducer(ctx context.Context, ch kombu.Channel, exchange entity.Exchange, cfg ProducerConfig) (*Producer, error) {
	p := &Producer{ch: ch, exchange: exchange, cfg: cfg}
	if err := p.declare(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// PublishOption overrides a publish parameter for a single message.
type PublishOption func(*publishing)

type publishing struct {
	routingKey string
}

// RoutingKey publishes the message with key instead of the producer routing key.
func RoutingKey(key string) PublishOption {
	return func(p *publishing) {
		p.routingKey = key
	}
}

// Publish publishes body to the producer exchange.
func (p *Producer) Publish(ctx context.Context, body io.Reader, opts ...PublishOption) error {
	if p.closed {
		return ErrClosed
	}

	pub := publishing{routingKey: p.cfg.RoutingKey}
	for _, opt := range opts {
		opt(&pub)
	}
	return p.ch.Publish(ctx, p.exchange.Name, pub.routingKey, body)
}

// Revive moves the producer onto ch, declaring the exchange again.
func (p *Producer) Revive(ctx context.Context, ch kombu.Channel) error {
	p.ch = ch
	log.WithField("exchange", p.exchange.Name).Debug("messaging: producer revived")
	return p.declare(ctx)
}

// Close stops the producer. The channel is left open as the producer does not own it.
func (p *Producer) Close() error {
	p.closed = true
	return nil
}

// Channel returns the channel the producer publishes on.
func (p *Producer) Channel() kombu.Channel { return p.ch }

// Exchange returns the exchange the producer publishes to.
func (p *Producer) Exchange() entity.Exchange { return p.exchange }

// RoutingKey returns the default routing key.
func (p *Producer) RoutingKey() string { return p.cfg.RoutingKey }

// IsClosed reports whether Close was called.
func (p *Producer) IsClosed() bool { return p.closed }

func (p *Producer) declare(ctx context.Context) error {
	if p.cfg.NoDeclare {
		return nil
	}
	return p.exchange.Declare(ctx, p.ch)
}
