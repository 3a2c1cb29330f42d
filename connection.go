package kombu

import (
	"io"
)

// Dialer represents a function which returns a connection and an error.
type Dialer func() (Connection, error)

// Error represents an error from the broker.
type Error interface {
	// Code returns the constant code from the protocol specification.
	Code() int
	// Reason returns the description of the error.
	Reason() string
	// Recover returns true when this error can be recovered by retrying later or with different parameters.
	Recover() bool
	// FromServer returns true when initiated from the server, false when from the client library.
	FromServer() bool
}

// Notifier an interface for types which emit lifecycle events.
type Notifier interface {
	// NotifyClose triggers the supplied function when a graceful close happens.
	// On a connection this fires for the connection only, on a channel for that channel only.
	NotifyClose(fn func())
	// NotifyReconnect triggers the supplied function after the transport re-established itself
	// following an unexpected close.
	NotifyReconnect(fn func())
	// NotifyError triggers the supplied function with the broker error behind an unexpected close.
	NotifyError(fn ErrorNotificationFunc)
}

// Connection represents a broker connection which channels are opened from.
type Connection interface {
	io.Closer
	Notifier

	// Channel opens a new channel. Typically there is one connection per process
	// and one channel per consumer or producer.
	Channel() (Channel, error)
	// IsClosed determines if the connection is closed.
	IsClosed() bool
}
