package compat

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/nitzanm/kombu"
	"github.com/nitzanm/kombu/entity"
	"github.com/nitzanm/kombu/messaging"
)

// ReceiveOption overrides a receive parameter for a single call.
type ReceiveOption func(*receiving)

type receiving struct {
	noAck           *bool
	enableCallbacks bool
}

// NoAck overrides the acknowledgement policy of the consumer.
func NoAck(noAck bool) ReceiveOption {
	return func(r *receiving) { r.noAck = &noAck }
}

// EnableCallbacks dispatches a fetched message to the registered callbacks.
// Deliveries of IterConsume always reach the callbacks.
func EnableCallbacks() ReceiveOption {
	return func(r *receiving) { r.enableCallbacks = true }
}

func newReceiving(def bool, opts []ReceiveOption) (receiving, bool) {
	r := receiving{}
	for _, opt := range opts {
		opt(&r)
	}
	if r.noAck != nil {
		return r, *r.noAck
	}
	return r, def
}

// FilterFunc selects messages, filtering is not supported by DiscardAll.
type FilterFunc func(msg kombu.Message) bool

// base the channel lifecycle and push mode consumption shared by Consumer and ConsumerSet.
// The channel is always owned.
type base struct {
	ch       kombu.Channel
	noAck    bool
	consumer *messaging.Consumer
	closed   bool
}

func newBase(ctx context.Context, conn kombu.Connection, queues []entity.Queue, cfg Config) (*base, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	consumer, err := messaging.NewConsumer(ctx, ch, queues, messaging.ConsumerConfig{
		NoAck:     cfg.NoAck,
		Callbacks: cfg.Callbacks,
	})
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &base{ch: ch, noAck: cfg.NoAck, consumer: consumer}, nil
}

// Register adds callbacks deliveries are dispatched to.
func (b *base) Register(callbacks ...messaging.Callback) {
	b.consumer.Register(callbacks...)
}

// Consume registers with the broker so messages are pushed to the consumer. Deliveries
// are handed out one at a time by IterConsume.
func (b *base) Consume(ctx context.Context, opts ...ReceiveOption) error {
	if b.closed {
		return ErrClosed
	}
	_, noAck := newReceiving(b.noAck, opts)
	return b.consumer.Consume(ctx, noAck)
}

// Cancel stops push mode consumption. Undelivered messages go back to their queue.
func (b *base) Cancel() {
	b.consumer.Cancel()
}

// IterConsume starts consuming once, on the first Next, then drains one delivery per step
// and dispatches it to the registered callbacks. A positive limit bounds the amount of
// steps, Unlimited blocks on every step until a delivery arrives.
func (b *base) IterConsume(limit int, opts ...ReceiveOption) *Iterator {
	_, noAck := newReceiving(b.noAck, opts)
	start := func(ctx context.Context) error {
		if b.closed {
			return ErrClosed
		}
		return b.consumer.Consume(ctx, noAck)
	}
	step := func(ctx context.Context) (kombu.Message, error) {
		if b.closed {
			return nil, ErrClosed
		}
		return b.consumer.DrainEvents(ctx)
	}
	return newIterator(limit, start, step)
}

// Wait collects the deliveries of IterConsume(limit) in order. With Unlimited it only
// returns once ctx ends.
func (b *base) Wait(ctx context.Context, limit int) ([]kombu.Message, error) {
	return collect(ctx, b.IterConsume(limit))
}

// Revive moves the consumer onto ch after the previous channel died. The queues are
// declared again and consumption stopped, call Consume or IterConsume to resume.
func (b *base) Revive(ctx context.Context, ch kombu.Channel) error {
	if b.closed {
		return ErrClosed
	}
	b.ch = ch
	return b.consumer.Revive(ctx, ch)
}

// Close cancels consumption and closes the channel. Only the first call has an effect,
// it is safe without ever consuming.
func (b *base) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	_ = b.consumer.Close()

	var err error
	if !b.ch.IsClosed() {
		err = b.ch.Close()
	}
	log.WithField("queues", len(b.consumer.Queues())).Debug("compat: consumer closed")
	return err
}

// Queues returns the bound queues in order.
func (b *base) Queues() []entity.Queue { return b.consumer.Queues() }

// Backend returns the underlying channel.
func (b *base) Backend() kombu.Channel { return b.ch }

// NoAck returns the acknowledgement policy.
func (b *base) NoAck() bool { return b.noAck }

// IsClosed reports whether Close was called.
func (b *base) IsClosed() bool { return b.closed }

func (b *base) purge(ctx context.Context) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	return b.consumer.Purge(ctx)
}

// Consumer consumes from a single queue over a channel it opens and owns.
type Consumer struct {
	*base
}

// NewConsumer opens a channel from conn, builds the queue and its exchange from opts and
// declares them. ctx only bounds the declarations.
func NewConsumer(ctx context.Context, conn kombu.Connection, opts ...Option) (*Consumer, error) {
	cfg := newConfig(opts)
	b, err := newBase(ctx, conn, []entity.Queue{cfg.queueEntity()}, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{base: b}, nil
}

// Queue returns the bound queue.
func (c *Consumer) Queue() entity.Queue {
	return c.consumer.Queues()[0]
}

// Fetch retrieves one message without waiting, nil when the queue is empty. With
// EnableCallbacks a fetched message is also dispatched to the callbacks, returning
// messaging.ErrNoCallbacks next to the message when none are registered.
func (c *Consumer) Fetch(ctx context.Context, opts ...ReceiveOption) (kombu.Message, error) {
	if c.closed {
		return nil, ErrClosed
	}

	r, noAck := newReceiving(c.noAck, opts)
	msg, err := c.Queue().Get(ctx, c.ch, noAck)
	if err != nil || msg == nil {
		return nil, err
	}
	if r.enableCallbacks {
		return msg, c.consumer.Receive(msg)
	}
	return msg, nil
}

// ProcessNext is not supported.
func (c *Consumer) ProcessNext() error {
	return fmt.Errorf("%w: use Fetch(ctx, EnableCallbacks()) instead of ProcessNext", ErrUnsupported)
}

// IterQueue fetches one message per step. Without infinite the iteration ends at the
// first empty fetch, with it empty fetches are retried until a message arrives. A
// positive limit ends the iteration once that many messages were produced, it is
// checked before fetching.
func (c *Consumer) IterQueue(limit int, infinite bool) *Iterator {
	fetch := func(ctx context.Context) (kombu.Message, error) {
		return c.Fetch(ctx)
	}
	if infinite {
		return newIterator(limit, nil, func(ctx context.Context) (kombu.Message, error) {
			return poll(ctx, fetch)
		})
	}
	return newIterator(limit, nil, fetch)
}

// Iter is IterQueue(Unlimited, true), it only ends with ctx or an error.
func (c *Consumer) Iter() *Iterator {
	return c.IterQueue(Unlimited, true)
}

// DiscardAll purges the queue, returning the amount of messages removed. Any filter
// is rejected with ErrUnsupported before purging.
func (c *Consumer) DiscardAll(ctx context.Context, filter FilterFunc) (int, error) {
	if filter != nil {
		return 0, fmt.Errorf("%w: DiscardAll does not filter, purge the queue instead", ErrUnsupported)
	}
	return c.purge(ctx)
}
