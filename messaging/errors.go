package messaging

import (
	"errors"
)

var (
	// ErrClosed returned by operations on a closed producer or consumer.
	ErrClosed = errors.New("messaging: closed")
	// ErrNoCallbacks returned by Receive when no callback is registered.
	ErrNoCallbacks = errors.New("messaging: consumer does not have any callbacks")
	// ErrNotConsuming returned by DrainEvents when nothing is registered to deliver events.
	ErrNotConsuming = errors.New("messaging: consumer is not consuming")
	// ErrConsumeEnded returned by DrainEvents once every delivery stream ended,
	// typically because the channel died. Revive the consumer to continue.
	ErrConsumeEnded = errors.New("messaging: delivery stream ended")
)
