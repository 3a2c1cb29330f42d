package compat

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nitzanm/kombu"
)

// Unlimited a limit that never ends an iteration.
const Unlimited = 0

// pollInterval the upper bound of the wait between empty fetches of an infinite queue
// iteration. it is a variable in order to reduce the wait in tests.
var pollInterval = time.Second

// newPollBackoff generates the wait schedule between empty fetches.
var newPollBackoff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = pollInterval
	b.MaxElapsedTime = 0
	return b
}

// stepFunc produces the next message of an iteration, a nil message ends it.
type stepFunc func(ctx context.Context) (kombu.Message, error)

// Iterator a lazy, single pass sequence of messages.
//
//	it := consumer.IterConsume(10)
//	for it.Next(ctx) {
//		msg := it.Message()
//		...
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//
// Next returns false once the limit is reached, the source is exhausted or an error
// occurred. Err tells an ordinary end (nil) from a failure. An Iterator cannot be
// restarted, ask the adapter for a new one.
type Iterator struct {
	start func(ctx context.Context) error
	step  stepFunc
	limit int

	n    int
	msg  kombu.Message
	err  error
	done bool
}

func newIterator(limit int, start func(ctx context.Context) error, step stepFunc) *Iterator {
	if limit < 0 {
		limit = Unlimited
	}
	return &Iterator{start: start, step: step, limit: limit}
}

// Next advances to the next message, blocking as long as the source requires.
// ctx bounds the call, cancelling it ends the iteration with ctx.Err().
func (it *Iterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	it.msg = nil
	if it.limit != Unlimited && it.n >= it.limit {
		return it.finish(nil)
	}

	if it.start != nil {
		start := it.start
		it.start = nil
		if err := start(ctx); err != nil {
			return it.finish(err)
		}
	}

	msg, err := it.step(ctx)
	if err != nil || msg == nil {
		return it.finish(err)
	}
	it.msg = msg
	it.n++
	return true
}

// Message returns the message Next advanced to.
func (it *Iterator) Message() kombu.Message { return it.msg }

// Err returns the error which ended the iteration, nil on an ordinary end.
func (it *Iterator) Err() error { return it.err }

// Count returns the amount of messages produced so far.
func (it *Iterator) Count() int { return it.n }

func (it *Iterator) finish(err error) bool {
	it.done = true
	it.err = err
	return false
}

// collect materialises it.
func collect(ctx context.Context, it *Iterator) ([]kombu.Message, error) {
	var msgs []kombu.Message
	for it.Next(ctx) {
		msgs = append(msgs, it.Message())
	}
	return msgs, it.Err()
}

// poll repeats fetch until it returns a message or an error, waiting in between.
func poll(ctx context.Context, fetch stepFunc) (kombu.Message, error) {
	b := newPollBackoff()
	for {
		msg, err := fetch(ctx)
		if err != nil || msg != nil {
			return msg, err
		}

		t := time.NewTimer(b.NextBackOff())
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
}
