package rabbitmq

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/nitzanm/kombu"
)

// helper types exposed from the underlying SDK package.
type (
	Config         = amqp091.Config
	Authentication = amqp091.Authentication
	PlainAuth      = amqp091.PlainAuth
)

// amqp091ConnectionDialer returns a new raw amqp091 connection.
type amqp091ConnectionDialer = func() (amqp091Connection, error)

// connection implements kombu.Connection over amqp091, redialling when the broker
// drops the connection unexpectedly.
type connection struct {
	emitter

	mu       sync.RWMutex // guards closed and Connection.
	reconnMu sync.Mutex   // serialises reconnect attempts.

	dialer amqp091ConnectionDialer // dialer the function used to (re)connect.
	ctx    context.Context         // ctx bounds the lifetime of the connection and its reconnects.
	closed bool                    // closed whether Close was called.

	Connection amqp091Connection
}

// DialConfig connects to a rabbitmq broker using an amqp:// url and Config for
// authentication, vhost, heartbeat etc.
func DialConfig(ctx context.Context, addr string, c Config) kombu.Dialer { //nolint // config has to be non-pointer to conform to amqp091.
	return func() (kombu.Connection, error) {
		return wrapDial(ctx, func() (amqp091Connection, error) {
			return dialConfig(addr, c)
		})
	}
}

// Dial connects to a rabbitmq broker using an amqp:// url.
func Dial(ctx context.Context, addr string) kombu.Dialer {
	return func() (kombu.Connection, error) {
		return wrapDial(ctx, func() (amqp091Connection, error) {
			return dial(addr)
		})
	}
}

func wrapDial(ctx context.Context, dial amqp091ConnectionDialer) (kombu.Connection, error) {
	conn, err := dial()
	if err != nil {
		return nil, err
	}
	c := &connection{
		Connection: conn,
		dialer:     dial,
		ctx:        ctx,
	}
	go c.watch()
	return c, nil
}

// Channel opens a new channel on the connection.
func (c *connection) Channel() (kombu.Channel, error) {
	ch, err := c.rawChannel()
	if err != nil {
		return nil, err
	}

	wc := &channel{Channel: ch, conn: c, ctx: c.ctx}
	if err = wc.init(); err != nil {
		return nil, err
	}
	return wc, nil
}

func (c *connection) rawChannel() (amqp091Channel, error) {
	var ch amqp091Channel
	err := c.onConnection(func(conn amqp091Connection) error {
		raw, cErr := conn.Channel()
		if cErr != nil {
			return cErr
		}
		ch = raw
		return nil
	})
	return ch, err
}

// Close closes the connection. Closing an already closed connection is a no-op.
func (c *connection) Close() error {
	if c.IsClosed() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	go c.emitClose()
	return c.Connection.Close()
}

// IsClosed reports whether the connection was closed, either by Close or by the broker.
func (c *connection) IsClosed() bool {
	if c == nil {
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return true
	}

	return isClosed(c.Connection)
}

// onConnection runs fn against the raw connection, reconnecting first if it was dropped.
func (c *connection) onConnection(fn func(conn amqp091Connection) error) error {
	if c.IsClosed() {
		if err := c.reconnect(); err != nil {
			return err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.Connection)
}

// reconnect redials a dropped connection. A connection closed through Close is never revived.
func (c *connection) reconnect() error {
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
		conn, err := c.dialer()
		if err != nil {
			log.WithError(err).Warn("rabbitmq: redial failed")
			return err
		}

		c.mu.Lock()
		c.Connection = conn
		c.mu.Unlock()
		return nil
	}, newBackoff(c.ctx))

	if err != nil {
		logError(c.ctx, c.Close(), "rabbitmq: could not close connection after failed reconnect")
		return err
	}

	log.Info("rabbitmq: connection re-established")
	go c.watch()
	go c.emitReconnect()
	return nil
}

// watch blocks until the connection closes, reconnecting on an unexpected close.
// It cannot run inside onConnection as that holds the read lock for the whole wait.
func (c *connection) watch() {
	ch := make(chan *amqp091.Error)
	err := c.onConnection(func(conn amqp091Connection) error {
		conn.NotifyClose(ch)
		return nil
	})

	if err != nil {
		logError(c.ctx, err, "rabbitmq: could not watch connection")
		return
	}

	select {
	case <-c.ctx.Done():
		logError(c.ctx, c.Close(), "rabbitmq: could not close connection")
	case e, ok := <-ch:
		if !ok || e == nil {
			logError(c.ctx, c.Close(), "rabbitmq: could not close connection")
			return
		}
		log.WithFields(log.Fields{"code": e.Code, "reason": e.Reason}).Warn("rabbitmq: connection lost")
		c.emitError(e)
		logError(c.ctx, c.reconnect(), "rabbitmq: could not reconnect")
	}
}
