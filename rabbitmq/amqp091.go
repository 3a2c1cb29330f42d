package rabbitmq

import (
	"io"

	"github.com/rabbitmq/amqp091-go"
)

// the narrowed amqp091 surface this package drives, so tests can replace the real client.

var (
	dialConfig = amqp091.DialConfig // dialConfig connects to the broker with config.
	dial       = amqp091.Dial       // dial connects to the broker using only an amqp:// url.
)

// see: github.com/rabbitmq/amqp091-go/channel.go
type amqp091Channel interface {
	io.Closer
	IsClosed() bool
	Qos(count, size int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(queue, routingKey, exchange string, noWait bool, args amqp091.Table) error
	QueuePurge(name string, noWait bool) (int, error)
	ExchangeDeclare(name, typ string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	Publish(exchange, routingKey string, mandatory, immediate bool, msg amqp091.Publishing) error
	Get(queue string, autoAck bool) (amqp091.Delivery, bool, error)
	Cancel(consumerTag string, noWait bool) error
	NotifyClose(rcv chan *amqp091.Error) chan *amqp091.Error
	Consume(
		queue, consumerTag string,
		autoAck, exclusive, noLocal, noWait bool,
		args amqp091.Table,
	) (<-chan amqp091.Delivery, error)
}

// see: github.com/rabbitmq/amqp091-go/connection.go
type amqp091Connection interface {
	io.Closer
	IsClosed() bool
	Channel() (*amqp091.Channel, error)
	NotifyClose(rcv chan *amqp091.Error) chan *amqp091.Error
}

// closer is either a channel or the overall connection.
type closer interface {
	io.Closer
	IsClosed() bool
}

// isClosed reports whether a connection or channel is missing or closed.
func isClosed(c closer) bool {
	return c == nil || c.IsClosed()
}
