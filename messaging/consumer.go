package messaging

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/nitzanm/kombu"
	"github.com/nitzanm/kombu/entity"
)

// Callback handles a delivered message.
type Callback func(msg kombu.Message)

// ConsumerConfig configures a Consumer. The zero value acknowledges messages manually,
// declares its queues and has no callbacks.
type ConsumerConfig struct {
	// NoAck consumes without acknowledgements.
	NoAck bool
	// NoDeclare skips declaring queues on construction, AddQueue and revival.
	NoDeclare bool
	// Callbacks the callbacks every delivery is dispatched to.
	Callbacks []Callback
	// TagPrefix prefixes the generated consumer tags.
	TagPrefix string
}

// Consumer consumes from one or more queues over a channel it does not own.
//
// A Consumer is meant to be driven by one goroutine, the only concurrency is the
// fan-in of deliveries from its queues.
type Consumer struct {
	// ctx bounds the broker registrations, cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	ch     kombu.Channel
	cfg    ConsumerConfig

	// queues the queues as configured, declared again on revival.
	queues []entity.Queue
	// bound the queues as declared on the current channel.
	bound []entity.Queue

	// consuming the cancel function of every registered queue, by queue index.
	consuming map[int]kombu.CancelFunc
	// events the deliveries of every registered queue.
	events chan kombu.Message
	// gen the delivery streams of the current registrations.
	gen *generation

	closed bool
}

// NewConsumer binds queues to ch, declaring them unless cfg.NoDeclare is set.
// ctx only bounds the declarations, registrations live until Cancel, Revive or Close.
func NewConsumer(ctx context.Context, ch kombu.Channel, queues []entity.Queue, cfg ConsumerConfig) (*Consumer, error) {
	lifetime, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		ctx:       lifetime,
		cancel:    cancel,
		ch:        ch,
		queues:    append([]entity.Queue(nil), queues...),
		cfg:       cfg,
		consuming: make(map[int]kombu.CancelFunc),
		events:    make(chan kombu.Message),
	}
	if err := c.declare(ctx); err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

// Queues returns the bound queues in the order they were added.
func (c *Consumer) Queues() []entity.Queue {
	return append([]entity.Queue(nil), c.bound...)
}

// Configured returns the queues as they were added, before declaration named them.
func (c *Consumer) Configured() []entity.Queue {
	return append([]entity.Queue(nil), c.queues...)
}

// Channel returns the channel the consumer runs on.
func (c *Consumer) Channel() kombu.Channel { return c.ch }

// NoAck returns the acknowledgement policy.
func (c *Consumer) NoAck() bool { return c.cfg.NoAck }

// IsClosed reports whether Close was called.
func (c *Consumer) IsClosed() bool { return c.closed }

// Register adds callbacks deliveries are dispatched to.
func (c *Consumer) Register(callbacks ...Callback) {
	c.cfg.Callbacks = append(c.cfg.Callbacks, callbacks...)
}

// AddQueue declares q and adds it to the bound queues. It is consumed from by the next Consume.
func (c *Consumer) AddQueue(ctx context.Context, q entity.Queue) (entity.Queue, error) {
	declared := q
	if !c.cfg.NoDeclare {
		var err error
		if declared, err = q.Declare(ctx, c.ch); err != nil {
			return q, err
		}
	}
	c.queues = append(c.queues, q)
	c.bound = append(c.bound, declared)
	return declared, nil
}

// Follow binds the queues of src under the names they were declared with. Revival
// declares them again as src configured them.
func (c *Consumer) Follow(ctx context.Context, src *Consumer) error {
	for i, q := range src.bound {
		declared := q
		if !c.cfg.NoDeclare {
			var err error
			if declared, err = q.Declare(ctx, c.ch); err != nil {
				return err
			}
		}
		c.queues = append(c.queues, src.queues[i])
		c.bound = append(c.bound, declared)
	}
	return nil
}

// Consume registers the consumer with the broker for every bound queue not consumed from yet.
// The registrations live until Cancel, Close or Revive, ctx only bounds the call itself.
func (c *Consumer) Consume(ctx context.Context, noAck bool) error {
	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.gen != nil && c.gen.isEnded() {
		// every stream of the previous registrations is gone, start over.
		c.Cancel()
	}
	if c.gen == nil {
		c.gen = newGeneration()
	}

	var (
		started []stream
		err     error
	)
	for i, q := range c.bound {
		if _, ok := c.consuming[i]; ok {
			continue
		}
		msgs, cancel, cErr := q.Consume(c.ctx, c.ch, c.cfg.TagPrefix+uuid.NewString(), noAck)
		if cErr != nil {
			err = cErr
			break
		}
		c.consuming[i] = cancel
		started = append(started, stream{index: i, msgs: msgs, autoAck: noAck || q.NoAck})
		log.WithField("queue", q.Name).Debug("messaging: consuming")
	}

	// every stream is counted before any forwarder can end one.
	if len(started) > 0 && !c.gen.add(len(started)) {
		// the earlier streams all ended meanwhile.
		c.renew(started)
	}
	for _, s := range started {
		go c.forward(s.msgs, s.autoAck, c.gen)
	}
	return err
}

// stream a delivery stream started by Consume.
type stream struct {
	index   int
	msgs    <-chan kombu.Message
	autoAck bool
}

// renew drops the registrations of an ended generation, keeping the ones in started.
func (c *Consumer) renew(started []stream) {
	keep := make(map[int]bool, len(started))
	for _, s := range started {
		keep[s.index] = true
	}
	for i, cancel := range c.consuming {
		if !keep[i] {
			cancel()
			delete(c.consuming, i)
		}
	}
	c.gen.stop()
	c.gen = newGeneration()
	c.gen.add(len(started))
}

// Cancel stops every registration. It is safe to call when not consuming.
func (c *Consumer) Cancel() {
	for i, cancel := range c.consuming {
		cancel()
		delete(c.consuming, i)
	}
	if c.gen != nil {
		c.gen.stop()
		c.gen = nil
	}
}

// Consuming reports whether any queue is registered with the broker.
func (c *Consumer) Consuming() bool {
	return len(c.consuming) > 0
}

// DrainEvents blocks until one delivery arrives from any registered queue, dispatches it
// to the callbacks and returns it.
func (c *Consumer) DrainEvents(ctx context.Context) (kombu.Message, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.gen == nil || len(c.consuming) == 0 {
		return nil, ErrNotConsuming
	}

	select {
	case msg := <-c.events:
		c.dispatch(msg)
		return msg, nil
	case <-c.gen.ended:
		return nil, ErrConsumeEnded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Receive dispatches msg to every callback.
func (c *Consumer) Receive(msg kombu.Message) error {
	if len(c.cfg.Callbacks) == 0 {
		return ErrNoCallbacks
	}
	c.dispatch(msg)
	return nil
}

// Purge removes every ready message from the bound queues, returning the amount removed.
func (c *Consumer) Purge(ctx context.Context) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}

	var total int
	for _, q := range c.bound {
		n, err := q.Purge(ctx, c.ch)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Revive moves the consumer onto ch after the previous channel died. Registrations on the
// old channel are dropped and the queues declared again, server named queues get new names.
// Consumption is not restarted.
func (c *Consumer) Revive(ctx context.Context, ch kombu.Channel) error {
	c.Cancel()
	c.ch = ch
	log.WithField("queues", len(c.queues)).Debug("messaging: consumer revived")
	return c.declare(ctx)
}

// Close cancels every registration. The channel is left open as the consumer does not own it.
func (c *Consumer) Close() error {
	c.Cancel()
	c.cancel()
	c.closed = true
	return nil
}

func (c *Consumer) dispatch(msg kombu.Message) {
	for _, cb := range c.cfg.Callbacks {
		cb(msg)
	}
}

func (c *Consumer) declare(ctx context.Context) error {
	bound := append([]entity.Queue(nil), c.queues...)
	if !c.cfg.NoDeclare {
		for i, q := range c.queues {
			declared, err := q.Declare(ctx, c.ch)
			if err != nil {
				return err
			}
			bound[i] = declared
		}
	}
	c.bound = bound
	return nil
}

// forward hands deliveries to DrainEvents until the stream ends or g is stopped.
func (c *Consumer) forward(msgs <-chan kombu.Message, autoAck bool, g *generation) {
	defer g.done()
	for msg := range msgs {
		select {
		case c.events <- msg:
		case <-g.stopped:
			// never handed over, auto acknowledged deliveries are already settled.
			if !autoAck {
				_ = msg.Nack(true)
			}
			return
		}
	}
}

// generation tracks the delivery streams started between two cancels.
type generation struct {
	mu      sync.Mutex
	alive   int
	stopped chan struct{} // stopped is closed by stop.
	ended   chan struct{} // ended is closed once every stream finished.

	stopOnce, endOnce sync.Once
}

func newGeneration() *generation {
	return &generation{stopped: make(chan struct{}), ended: make(chan struct{})}
}

// add counts n more streams, false once every earlier stream already ended.
func (g *generation) add(n int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isEnded() {
		return false
	}
	g.alive += n
	return true
}

func (g *generation) done() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.alive--
	if g.alive == 0 {
		g.endOnce.Do(func() { close(g.ended) })
	}
}

func (g *generation) stop() {
	g.stopOnce.Do(func() { close(g.stopped) })
}

func (g *generation) isEnded() bool {
	select {
	case <-g.ended:
		return true
	default:
		return false
	}
}
