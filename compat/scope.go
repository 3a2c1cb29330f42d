package compat

import (
	"context"

	"github.com/nitzanm/kombu"
)

// UsePublisher runs fn with a new publisher, closing it once fn returns or panics.
// The error of fn takes precedence over the close error.
func UsePublisher(ctx context.Context, conn kombu.Connection, fn func(p *Publisher) error, opts ...Option) (err error) {
	p, err := NewPublisher(ctx, conn, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(p)
}

// UseConsumer runs fn with a new consumer, closing it once fn returns or panics.
// The error of fn takes precedence over the close error.
func UseConsumer(ctx context.Context, conn kombu.Connection, fn func(c *Consumer) error, opts ...Option) (err error) {
	c, err := NewConsumer(ctx, conn, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(c)
}
