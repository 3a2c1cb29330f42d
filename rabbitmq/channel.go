package rabbitmq

import (
	"context"
	"io"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/nitzanm/kombu"
)

// reconnection the event sent to active consumers once their channel was replaced.
const reconnection = iota

// channel implements kombu.Channel over amqp091, replacing the raw channel when the
// broker closes it unexpectedly and re-registering active consumers on the new one.
type channel struct {
	emitter

	mu       sync.RWMutex    // mu guards the raw channel, closed and the consumer registry.
	reconnMu sync.Mutex      // reconnMu serialises reconnect attempts.
	ctx      context.Context // ctx the connection bound context.
	conn     *connection     // conn the connection which raw channels are opened from.

	// closed whether Close was called, either directly or after a failed reconnect.
	closed bool

	// consumers maps a consumer tag to the channel it is told about reconnections on.
	// An entry exists only while the consumer is running so it never sees stale events.
	consumers map[string]chan int

	Channel amqp091Channel
}

// QoS sets the prefetch count and size on the channel.
func (c *channel) QoS(ctx context.Context, count, size int64, global bool) error {
	return c.onChannel(ctx, func(ch amqp091Channel) error {
		return ch.Qos(int(count), int(size), global)
	})
}

// CreateQueue declares a queue.
func (c *channel) CreateQueue(ctx context.Context, name string, durable, autoDelete, exclusive bool) (kombu.Queue, error) {
	var q amqp091.Queue
	err := c.onChannel(ctx, func(ch amqp091Channel) error {
		var qErr error
		q, qErr = ch.QueueDeclare(name, durable, autoDelete, exclusive, false, nil)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	return &queue{Queue: q, ch: c}, nil
}

// BindQueue binds a queue to an exchange.
func (c *channel) BindQueue(ctx context.Context, queue, exchange, routingKey string) error {
	return c.onChannel(ctx, func(ch amqp091Channel) error {
		return ch.QueueBind(queue, routingKey, exchange, false, nil)
	})
}

// CreateExchange declares an exchange.
func (c *channel) CreateExchange(
	ctx context.Context,
	name string,
	typ kombu.ExchangeType,
	durable, autoDelete bool,
) error {
	return c.onChannel(ctx, func(ch amqp091Channel) error {
		return ch.ExchangeDeclare(name, string(typ), durable, autoDelete, false, false, nil)
	})
}

// Publish publishes body onto an exchange, detecting the content type from the payload.
func (c *channel) Publish(ctx context.Context, exchange, routingKey string, body io.Reader) error {
	b, err := io.ReadAll(body)
	if err != nil {
		logError(ctx, err, "rabbitmq: could not read message body")
		return err
	}

	m := mimetype.Detect(b)
	return c.onChannel(ctx, func(ch amqp091Channel) error {
		return ch.Publish(exchange, routingKey, false, false, amqp091.Publishing{
			ContentType:  m.String(),
			DeliveryMode: amqp091.Persistent,
			Body:         b,
		})
	})
}

// Get performs a single basic.get against a queue.
func (c *channel) Get(ctx context.Context, queue string, autoAck bool) (kombu.Message, error) {
	var (
		d  amqp091.Delivery
		ok bool
	)
	err := c.onChannel(ctx, func(ch amqp091Channel) error {
		var gErr error
		d, ok, gErr = ch.Get(queue, autoAck)
		return gErr
	})
	if err != nil || !ok {
		return nil, err
	}
	return &message{ctx: ctx, Delivery: d}, nil
}

// Purge removes every ready message from a queue.
func (c *channel) Purge(ctx context.Context, queue string) (int, error) {
	var n int
	err := c.onChannel(ctx, func(ch amqp091Channel) error {
		var pErr error
		n, pErr = ch.QueuePurge(queue, false)
		return pErr
	})
	return n, err
}

// Close closes the channel, stopping every active consume.
// Closing twice returns amqp091.ErrClosed.
func (c *channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return amqp091.ErrClosed
	}

	c.closed = true
	c.mu.Unlock()

	c.stopConsumers()
	go c.emitClose()
	return c.Channel.Close()
}

// IsClosed reports whether the channel was closed, either by Close or by the broker.
func (c *channel) IsClosed() bool {
	if c == nil {
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return true
	}

	return isClosed(c.Channel)
}

// Consume registers a consumer on a queue. Unlike the SDK the deliveries survive a
// channel reconnect, and the consume stops once ctx is done or cancel is called.
func (c *channel) Consume(
	ctx context.Context,
	queue, consumerTag string,
	autoAck, exclusive bool,
) (<-chan kombu.Message, kombu.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	args := consumeArgs{queue: queue, tag: consumerTag, autoAck: autoAck, exclusive: exclusive}
	active, err := c.startConsume(ctx, args)
	if err != nil {
		cancel()
		return nil, noop, err
	}

	msgs := make(chan kombu.Message)
	go c.consumeLoop(ctx, args, active, msgs)
	return msgs, cancel, nil
}

// onChannel runs fn against the raw channel, reconnecting first if it was dropped.
func (c *channel) onChannel(ctx context.Context, fn func(ch amqp091Channel) error) error {
	if c.IsClosed() {
		if err := c.reconnect(); err != nil {
			return err
		}
	}

	c.mu.RLock()
	err := fn(c.Channel)
	c.mu.RUnlock()

	if err != nil {
		logError(ctx, err, "rabbitmq: channel operation failed")
	}
	return err
}

// reconnect opens a replacement raw channel when the previous one was dropped by the broker.
// Since the raw channel comes from the managed connection this also recovers from
// connection level closes.
func (c *channel) reconnect() error {
	c.reconnMu.Lock()
	defer c.reconnMu.Unlock()

	if !c.IsClosed() {
		return nil
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return amqp091.ErrClosed
	}

	err := backoff.Retry(func() error {
		ch, err := c.conn.rawChannel()
		if err != nil {
			return err
		}

		c.mu.Lock()
		c.Channel = ch
		c.mu.Unlock()
		return c.init()
	}, newBackoff(c.ctx))

	if err != nil {
		logError(c.ctx, c.Close(), "rabbitmq: could not close channel after failed reconnect")
		return err
	}

	log.Debug("rabbitmq: channel re-established")
	c.signalConsumers(reconnection)
	go c.emitReconnect()
	return nil
}

// noop a CancelFunc returned alongside an error so callers never call a nil function.
var noop = func() {}

// consumeArgs holds the arguments a consume was started with, kept to restart it after a reconnect.
type consumeArgs struct {
	queue, tag         string
	autoAck, exclusive bool
}

// activeConsume a consume currently registered on a raw channel.
type activeConsume struct {
	deliveries <-chan amqp091.Delivery
	cancel     func() error
}

// consumeLoop forwards deliveries to out, restarting the consume after every reconnect,
// until ctx is done or the channel is closed. out is closed when it returns.
func (c *channel) consumeLoop(ctx context.Context, args consumeArgs, active *activeConsume, out chan<- kombu.Message) {
	notifications := c.registerConsume(args.tag)
	defer func() {
		c.deregisterConsume(args.tag)
		close(out)
	}()

	for {
		restart := forward(ctx, active, notifications, out)
		logError(ctx, active.cancel(), "rabbitmq: could not cancel consume")
		if !restart {
			return
		}

		next, err := c.startConsume(ctx, args)
		if err != nil {
			logError(ctx, err, "rabbitmq: could not restart consume")
			return
		}
		active = next
	}
}

// forward pushes deliveries to out until the consume should stop or be restarted.
// It returns true when a reconnect happened and the consume has to be registered again.
func forward(ctx context.Context, active *activeConsume, notifications <-chan int, out chan<- kombu.Message) bool {
	deliveries := active.deliveries
	for {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-notifications:
			return ok
		case d, ok := <-deliveries:
			if !ok {
				// the raw channel went away; wait for the reconnect notification.
				deliveries = nil
				continue
			}
			select {
			case out <- &message{ctx: ctx, Delivery: d}:
			case <-ctx.Done():
				return false
			}
		}
	}
}

// startConsume registers a consumer on the raw channel.
func (c *channel) startConsume(ctx context.Context, args consumeArgs) (*activeConsume, error) {
	var dc <-chan amqp091.Delivery
	err := c.onChannel(ctx, func(ch amqp091Channel) error {
		var cErr error
		dc, cErr = ch.Consume(args.queue, args.tag, args.autoAck, args.exclusive, false, false, nil)
		return cErr
	})

	if err != nil {
		return nil, err
	}

	return &activeConsume{
		deliveries: dc,
		cancel: func() error {
			if c.IsClosed() {
				return nil
			}
			return c.onChannel(ctx, func(ch amqp091Channel) error {
				return ch.Cancel(args.tag, false)
			})
		},
	}, nil
}

// init watches the raw channel for closes.
func (c *channel) init() error {
	c.mu.Lock()
	if c.consumers == nil {
		c.consumers = make(map[string]chan int)
	}
	c.mu.Unlock()

	rcv := make(chan *amqp091.Error)
	err := c.onChannel(c.ctx, func(ch amqp091Channel) error {
		ch.NotifyClose(rcv)
		return nil
	})

	if err != nil {
		return err
	}

	go func() {
		e, ok := <-rcv
		if !ok || e == nil {
			// graceful close, Close also stops the active consumes.
			c.mu.RLock()
			closed := c.closed
			c.mu.RUnlock()
			if !closed {
				logError(c.ctx, c.Close(), "rabbitmq: could not close channel")
			}
			return
		}
		log.WithFields(log.Fields{"code": e.Code, "reason": e.Reason}).Warn("rabbitmq: channel lost")
		c.emitError(e)
		logError(c.ctx, c.reconnect(), "rabbitmq: could not reconnect channel")
	}()

	return nil
}

// registerConsume adds a consumer tag to the reconnect registry. Consumer tags are
// expected to be unique per consume, a duplicate tag shares the existing entry.
func (c *channel) registerConsume(tag string) <-chan int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumers == nil {
		c.consumers = make(map[string]chan int)
	}
	if v, ok := c.consumers[tag]; ok {
		return v
	}

	ch := make(chan int, 1)
	c.consumers[tag] = ch
	return ch
}

// deregisterConsume removes a consumer from the reconnect registry.
func (c *channel) deregisterConsume(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.consumers[tag]
	if !ok {
		return
	}

	delete(c.consumers, tag)
	close(ch)
}

// signalConsumers tells every running consumer about an event without blocking the caller.
func (c *channel) signalConsumers(e int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, consumer := range c.consumers {
		select {
		case consumer <- e:
		default:
			// an event is already pending for this consumer.
		}
	}
}

// stopConsumers closes the registry channels, telling every consumer to stop.
func (c *channel) stopConsumers() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, consumer := range c.consumers {
		close(consumer)
	}

	c.consumers = make(map[string]chan int)
}
