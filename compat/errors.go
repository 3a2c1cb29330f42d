package compat

import (
	"errors"

	"github.com/nitzanm/kombu/messaging"
)

var (
	// ErrUnsupported returned by operations the adapters deliberately do not implement.
	// The wrapping error names the replacement.
	ErrUnsupported = errors.New("compat: unsupported operation")
	// ErrClosed returned by every operation on a closed adapter.
	ErrClosed = messaging.ErrClosed
)
