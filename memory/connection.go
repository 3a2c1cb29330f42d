package memory

import (
	"context"
	"sync"

	"github.com/nitzanm/kombu"
)

// connection a connection to a Broker.
type connection struct {
	handlers

	broker *Broker

	mu       sync.Mutex
	closed   bool
	channels []*channel
}

// Channel opens a new channel.
func (c *connection) Channel() (kombu.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	ctx, stop := context.WithCancel(context.Background())
	ch := &channel{
		broker:  c.broker,
		ctx:     ctx,
		stop:    stop,
		tags:    make(map[string]kombu.CancelFunc),
		unacked: make(map[*message]struct{}),
	}
	c.channels = append(c.channels, ch)
	return ch, nil
}

// Close closes the connection and every channel opened on it.
func (c *connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	channels := c.channels
	c.channels = nil
	c.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Close()
	}
	c.emitClose()
	return nil
}

// IsClosed reports whether Close was called.
func (c *connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
