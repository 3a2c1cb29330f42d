package memory

import (
	"fmt"
)

// AMQP reply codes used by the broker.
const (
	codeChannelError       = 504
	codeNotFound           = 404
	codePreconditionFailed = 406
	codeNotAllowed         = 530
)

// Error a broker error, it implements kombu.Error.
type Error struct {
	code   int
	reason string
}

// ErrClosed returned by operations on a closed channel or connection.
var ErrClosed = &Error{code: codeChannelError, reason: "channel/connection is not open"}

func (e *Error) Error() string {
	return fmt.Sprintf("memory: %s (%d)", e.reason, e.code)
}

// Code returns the AMQP reply code.
func (e *Error) Code() int { return e.code }

// Reason returns the description of the error.
func (e *Error) Reason() string { return e.reason }

// Recover is always false, the in-memory broker has nothing to recover from.
func (e *Error) Recover() bool { return false }

// FromServer is always true as errors are raised by the broker.
func (e *Error) FromServer() bool { return true }

func notFound(kind, name string) *Error {
	return &Error{code: codeNotFound, reason: fmt.Sprintf("no %s '%s'", kind, name)}
}

func preconditionFailed(format string, args ...interface{}) *Error {
	return &Error{code: codePreconditionFailed, reason: fmt.Sprintf(format, args...)}
}
