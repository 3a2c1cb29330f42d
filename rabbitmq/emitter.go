package rabbitmq

import (
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"github.com/nitzanm/kombu"
)

// emitter holds the lifecycle handlers registered on a connection or channel.
type emitter struct {
	mu        sync.RWMutex
	closeOnce sync.Once

	closes     []func()
	reconnects []func()
	errs       []kombu.ErrorNotificationFunc
}

// NotifyClose registers a handler triggered once on a graceful close.
func (e *emitter) NotifyClose(fn func()) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closes = append(e.closes, fn)
}

// NotifyReconnect registers a handler triggered after every successful reconnect.
func (e *emitter) NotifyReconnect(fn func()) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reconnects = append(e.reconnects, fn)
}

// NotifyError registers a handler which receives the error behind every unexpected close.
func (e *emitter) NotifyError(fn kombu.ErrorNotificationFunc) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, fn)
}

// emitClose runs the close handlers, at most once for the lifetime of the emitter.
func (e *emitter) emitClose() {
	e.closeOnce.Do(func() {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for _, fn := range e.closes {
			fn()
		}
	})
}

func (e *emitter) emitReconnect() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, fn := range e.reconnects {
		fn()
	}
}

func (e *emitter) emitError(err *amqp091.Error) {
	if err == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, fn := range e.errs {
		fn(&amqpError{err})
	}
}
