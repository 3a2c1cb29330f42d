package rabbitmq

import (
	"context"

	"github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// amqpError exposes an amqp091.Error as a kombu.Error.
type amqpError struct {
	*amqp091.Error
}

// Code returns the AMQP error code.
func (a *amqpError) Code() int {
	return a.Error.Code
}

// Reason returns the error description
func (a *amqpError) Reason() string {
	return a.Error.Reason
}

// Recover whether the error is recoverable.
func (a *amqpError) Recover() bool {
	return a.Error.Recover
}

// FromServer whether the close originated from the server.
func (a *amqpError) FromServer() bool {
	return a.Error.Server
}

// logError logs an error which has nowhere else to go, typically from a background routine.
func logError(_ context.Context, err error, msg string) {
	if err == nil {
		return
	}

	log.WithError(err).Error(msg)
}
