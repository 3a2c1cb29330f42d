package rabbitmq

import (
	"context"

	"github.com/rabbitmq/amqp091-go"
)

type errorFunc func() error

type mockAMQPChannelHandlers struct {
	Close           errorFunc
	Qos             errorFunc
	QueueBind       errorFunc
	ExchangeDeclare errorFunc
	Publish         func(exchange, key string, msg amqp091.Publishing) error
	Cancel          errorFunc
	IsClosed        func() bool
	QueueDeclare    func() (amqp091.Queue, error)
	QueuePurge      func(name string) (int, error)
	Get             func(queue string, autoAck bool) (amqp091.Delivery, bool, error)
	Consume         func() (<-chan amqp091.Delivery, error)
	NotifyClose     func(ch chan *amqp091.Error) chan *amqp091.Error
}

// newDefaultAMQPChannelHandlers generates a default set of handlers.
func newDefaultAMQPChannelHandlers() mockAMQPChannelHandlers {
	return mockAMQPChannelHandlers{
		Close:           func() error { return nil },
		Qos:             func() error { return nil },
		QueueBind:       func() error { return nil },
		ExchangeDeclare: func() error { return nil },
		Cancel:          func() error { return nil },
		Publish:         func(_, _ string, _ amqp091.Publishing) error { return nil },
		IsClosed:        func() bool { return false },
		QueueDeclare:    func() (amqp091.Queue, error) { return amqp091.Queue{}, nil },
		QueuePurge:      func(_ string) (int, error) { return 0, nil },
		Get: func(_ string, _ bool) (amqp091.Delivery, bool, error) {
			return amqp091.Delivery{}, false, nil
		},
		Consume: func() (<-chan amqp091.Delivery, error) {
			ch := make(chan amqp091.Delivery)
			close(ch)
			return ch, nil
		},
		// don't close or send on the channel as either is seen as a channel close.
		NotifyClose: func(ch chan *amqp091.Error) chan *amqp091.Error { return ch },
	}
}

type mockAMQPChannel struct {
	h mockAMQPChannelHandlers
}

func (m *mockAMQPChannel) Close() error {
	return m.h.Close()
}
func (m *mockAMQPChannel) IsClosed() bool {
	return m.h.IsClosed()
}
func (m *mockAMQPChannel) Qos(_, _ int, _ bool) error {
	return m.h.Qos()
}
func (m *mockAMQPChannel) QueueDeclare(_ string, _, _, _, _ bool, _ amqp091.Table) (amqp091.Queue, error) {
	return m.h.QueueDeclare()
}
func (m *mockAMQPChannel) QueueBind(_, _, _ string, _ bool, _ amqp091.Table) error {
	return m.h.QueueBind()
}
func (m *mockAMQPChannel) QueuePurge(name string, _ bool) (int, error) {
	return m.h.QueuePurge(name)
}
func (m *mockAMQPChannel) ExchangeDeclare(_, _ string, _, _, _, _ bool, _ amqp091.Table) error {
	return m.h.ExchangeDeclare()
}
func (m *mockAMQPChannel) Publish(exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	return m.h.Publish(exchange, key, msg)
}
func (m *mockAMQPChannel) Get(queue string, autoAck bool) (amqp091.Delivery, bool, error) {
	return m.h.Get(queue, autoAck)
}
func (m *mockAMQPChannel) Consume(_, _ string, _, _, _, _ bool, _ amqp091.Table) (<-chan amqp091.Delivery, error) {
	return m.h.Consume()
}
func (m *mockAMQPChannel) Cancel(_ string, _ bool) error {
	return m.h.Cancel()
}
func (m *mockAMQPChannel) NotifyClose(rcv chan *amqp091.Error) chan *amqp091.Error {
	return m.h.NotifyClose(rcv)
}

type mockAMQPAcknowledgerHandlers struct {
	Ack    func(multiple bool) error
	Nack   func(multiple, requeue bool) error
	Reject errorFunc
}

// newDefaultAMQPAcknowledgerHandlers generates a default set of handlers.
func newDefaultAMQPAcknowledgerHandlers() mockAMQPAcknowledgerHandlers {
	return mockAMQPAcknowledgerHandlers{
		Ack:    func(bool) error { return nil },
		Nack:   func(bool, bool) error { return nil },
		Reject: func() error { return nil },
	}
}

type mockAMQPAcknowledger struct {
	h mockAMQPAcknowledgerHandlers
}

func (m *mockAMQPAcknowledger) Ack(_ uint64, multiple bool) error {
	return m.h.Ack(multiple)
}
func (m *mockAMQPAcknowledger) Nack(_ uint64, multiple, requeue bool) error {
	return m.h.Nack(multiple, requeue)
}
func (m *mockAMQPAcknowledger) Reject(_ uint64, _ bool) error {
	return m.h.Reject()
}

type mockAMQPConnectionHandlers struct {
	Close       errorFunc
	IsClosed    func() bool
	Channel     func() (*amqp091.Channel, error)
	NotifyClose func(ch chan *amqp091.Error) chan *amqp091.Error
}

// newDefaultAMQPConnectionHandlers generates a default set of handlers.
func newDefaultAMQPConnectionHandlers() mockAMQPConnectionHandlers {
	return mockAMQPConnectionHandlers{
		Close:    func() error { return nil },
		IsClosed: func() bool { return false },
		Channel: func() (*amqp091.Channel, error) {
			return &amqp091.Channel{}, nil
		},
		NotifyClose: func(ch chan *amqp091.Error) chan *amqp091.Error {
			close(ch)
			return ch
		},
	}
}

type mockAMQPConnection struct {
	h mockAMQPConnectionHandlers
}

func (m *mockAMQPConnection) Close() error {
	return m.h.Close()
}
func (m *mockAMQPConnection) IsClosed() bool {
	return m.h.IsClosed()
}
func (m *mockAMQPConnection) Channel() (*amqp091.Channel, error) {
	return m.h.Channel()
}
func (m *mockAMQPConnection) NotifyClose(rcv chan *amqp091.Error) chan *amqp091.Error {
	return m.h.NotifyClose(rcv)
}

// newMockChannel wraps the handlers in an initialised channel.
func newMockChannel(h mockAMQPChannelHandlers) *channel {
	return &channel{
		Channel:   &mockAMQPChannel{h: h},
		ctx:       context.Background(),
		consumers: make(map[string]chan int),
	}
}
