package memory

import (
	"sync"

	"github.com/nitzanm/kombu"
)

// handlers the lifecycle handlers of a connection or channel.
type handlers struct {
	mu         sync.Mutex
	closes     []func()
	reconnects []func()
	errs       []kombu.ErrorNotificationFunc
}

// NotifyClose registers a handler triggered once when closed.
func (h *handlers) NotifyClose(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes = append(h.closes, fn)
}

// NotifyReconnect registers a handler. The in-memory broker never reconnects.
func (h *handlers) NotifyReconnect(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reconnects = append(h.reconnects, fn)
}

// NotifyError registers a handler. The in-memory broker never closes unexpectedly.
func (h *handlers) NotifyError(fn kombu.ErrorNotificationFunc) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, fn)
}

func (h *handlers) emitClose() {
	h.mu.Lock()
	closes := h.closes
	h.mu.Unlock()
	for _, fn := range closes {
		fn()
	}
}
