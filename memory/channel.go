package memory

import (
	"context"
	"io"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/nitzanm/kombu"
)

// channel a session on a Broker.
type channel struct {
	handlers

	broker *Broker
	ctx    context.Context    // ctx is done once the channel closes.
	stop   context.CancelFunc // stop ends ctx.

	mu      sync.Mutex
	closed  bool
	tags    map[string]kombu.CancelFunc
	unacked map[*message]struct{}
}

// QoS is accepted but not enforced.
func (c *channel) QoS(_ context.Context, _, _ int64, _ bool) error {
	return c.check()
}

// CreateQueue declares a queue, generating a name when name is empty.
func (c *channel) CreateQueue(_ context.Context, name string, durable, autoDelete, exclusive bool) (kombu.Queue, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	declared, err := c.broker.declareQueue(name, durable, autoDelete, exclusive)
	if err != nil {
		return nil, err
	}
	return &boundQueue{name: declared, ch: c}, nil
}

// BindQueue binds a queue to an exchange.
func (c *channel) BindQueue(_ context.Context, queue, exchange, routingKey string) error {
	if err := c.check(); err != nil {
		return err
	}
	return c.broker.bind(queue, exchange, routingKey)
}

// CreateExchange declares an exchange.
func (c *channel) CreateExchange(_ context.Context, name string, typ kombu.ExchangeType, durable, autoDelete bool) error {
	if err := c.check(); err != nil {
		return err
	}
	if !typ.Valid() {
		return &Error{code: codeNotAllowed, reason: "invalid exchange type '" + string(typ) + "'"}
	}
	return c.broker.declareExchange(name, typ, durable, autoDelete)
}

// Publish routes body through an exchange.
func (c *channel) Publish(_ context.Context, exchange, routingKey string, body io.Reader) error {
	if err := c.check(); err != nil {
		return err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	return c.broker.publish(delivery{
		body:        b,
		exchange:    exchange,
		routingKey:  routingKey,
		contentType: mimetype.Detect(b).String(),
	})
}

// Get takes the next ready message from a queue, nil when there is none.
func (c *channel) Get(ctx context.Context, queue string, autoAck bool) (kombu.Message, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	d, _, err := c.broker.pop(queue)
	if err != nil || d == nil {
		return nil, err
	}
	return c.deliver(ctx, queue, d, autoAck), nil
}

// Purge removes every ready message from a queue.
func (c *channel) Purge(_ context.Context, queue string) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	return c.broker.purge(queue)
}

// Consume pushes messages from a queue to the returned channel until cancelled,
// ctx is done or the channel closes. An empty tag is replaced with a generated one.
func (c *channel) Consume(ctx context.Context, queue, consumerTag string, autoAck, _ bool) (<-chan kombu.Message, kombu.CancelFunc, error) {
	if consumerTag == "" {
		consumerTag = "ctag-" + uuid.NewString()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, func() {}, ErrClosed
	}
	if _, ok := c.tags[consumerTag]; ok {
		c.mu.Unlock()
		return nil, func() {}, &Error{code: codeNotAllowed, reason: "attempt to reuse consumer tag '" + consumerTag + "'"}
	}
	if err := c.broker.addConsumer(queue); err != nil {
		c.mu.Unlock()
		return nil, func() {}, err
	}

	cctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			c.mu.Lock()
			delete(c.tags, consumerTag)
			c.mu.Unlock()
			c.broker.removeConsumer(queue)
		})
	}
	c.tags[consumerTag] = stop
	c.mu.Unlock()

	out := make(chan kombu.Message)
	go c.pump(cctx, queue, autoAck, out)
	return out, stop, nil
}

// pump moves ready messages from a queue to out.
func (c *channel) pump(ctx context.Context, queue string, autoAck bool, out chan<- kombu.Message) {
	defer close(out)
	for {
		d, wake, err := c.broker.pop(queue)
		if err != nil {
			return
		}
		if d == nil {
			select {
			case <-wake:
				continue
			case <-ctx.Done():
				return
			case <-c.ctx.Done():
				return
			}
		}

		msg := c.deliver(ctx, queue, d, autoAck)
		select {
		case out <- msg:
		case <-ctx.Done():
			c.putBack(msg)
			return
		case <-c.ctx.Done():
			c.putBack(msg)
			return
		}
	}
}

// deliver wraps d, tracking it as unacknowledged unless autoAck is set.
func (c *channel) deliver(ctx context.Context, queue string, d *delivery, autoAck bool) *message {
	m := &message{ctx: ctx, d: d, queue: queue, ch: c, autoAck: autoAck, redelivered: d.redelivered}
	if !autoAck {
		c.mu.Lock()
		c.unacked[m] = struct{}{}
		c.mu.Unlock()
	}
	return m
}

// settle acknowledges m, putting it back on its queue when requeue is set.
func (c *channel) settle(m *message, requeue bool) error {
	if m.autoAck {
		return preconditionFailed("unknown delivery tag, message was auto acknowledged")
	}

	c.mu.Lock()
	_, ok := c.unacked[m]
	delete(c.unacked, m)
	c.mu.Unlock()

	if !ok {
		return preconditionFailed("unknown delivery tag, message already acknowledged")
	}
	if requeue {
		c.broker.requeue(m.queue, m.d)
	}
	return nil
}

// putBack returns a message which was never handed to a consumer.
func (c *channel) putBack(m *message) {
	if m.autoAck {
		c.broker.requeue(m.queue, m.d)
		return
	}
	_ = c.settle(m, true)
}

// Close closes the channel, stopping its consumers and requeueing unacknowledged messages.
func (c *channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	stops := make([]kombu.CancelFunc, 0, len(c.tags))
	for _, stop := range c.tags {
		stops = append(stops, stop)
	}
	c.mu.Unlock()

	c.stop()
	for _, stop := range stops {
		stop()
	}

	c.mu.Lock()
	pending := c.unacked
	c.unacked = make(map[*message]struct{})
	c.mu.Unlock()
	for m := range pending {
		c.broker.requeue(m.queue, m.d)
	}

	c.emitClose()
	return nil
}

// IsClosed reports whether the channel was closed.
func (c *channel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *channel) check() error {
	if c.IsClosed() {
		return ErrClosed
	}
	return nil
}

// boundQueue a declared queue on a channel.
type boundQueue struct {
	name string
	ch   kombu.Channel
}

func (q *boundQueue) Name() string { return q.name }

func (q *boundQueue) Bind(ctx context.Context, exchange, routingKey string) error {
	return q.ch.BindQueue(ctx, q.name, exchange, routingKey)
}

func (q *boundQueue) Consume(ctx context.Context, consumerTag string, autoAck, exclusive bool) (<-chan kombu.Message, kombu.CancelFunc, error) {
	return q.ch.Consume(ctx, q.name, consumerTag, autoAck, exclusive)
}

func (q *boundQueue) Get(ctx context.Context, autoAck bool) (kombu.Message, error) {
	return q.ch.Get(ctx, q.name, autoAck)
}

func (q *boundQueue) Purge(ctx context.Context) (int, error) {
	return q.ch.Purge(ctx, q.name)
}
