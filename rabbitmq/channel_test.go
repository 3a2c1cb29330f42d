package rabbitmq

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitzanm/kombu"
)

func TestChannel_Publish(t *testing.T) {
	tt := []struct {
		Name     string
		Body     []byte
		Setup    func(t *testing.T, h *mockAMQPChannelHandlers)
		Expected func(t *testing.T, err error)
	}{
		{
			Name: "DetectsJSON",
			Body: []byte(`{"id": 1}`),
			Setup: func(t *testing.T, h *mockAMQPChannelHandlers) {
				h.Publish = func(exchange, key string, msg amqp091.Publishing) error {
					assert.Equal(t, "orders-ex", exchange)
					assert.Equal(t, "new", key)
					assert.Equal(t, "application/json", msg.ContentType)
					assert.Equal(t, amqp091.Persistent, msg.DeliveryMode)
					return nil
				}
			},
			Expected: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			Name: "DetectsText",
			Body: []byte("plain order"),
			Setup: func(t *testing.T, h *mockAMQPChannelHandlers) {
				h.Publish = func(_, _ string, msg amqp091.Publishing) error {
					assert.Equal(t, "text/plain; charset=utf-8", msg.ContentType)
					return nil
				}
			},
			Expected: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			Name: "ErrFromAMQP",
			Body: []byte("order"),
			Setup: func(t *testing.T, h *mockAMQPChannelHandlers) {
				h.Publish = func(_, _ string, _ amqp091.Publishing) error {
					return errors.New("could not publish")
				}
			},
			Expected: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			h := newDefaultAMQPChannelHandlers()
			tc.Setup(t, &h)
			err := newMockChannel(h).Publish(context.Background(), "orders-ex", "new", bytes.NewReader(tc.Body))
			tc.Expected(t, err)
		})
	}
}

func TestChannel_CreateQueue(t *testing.T) {
	tt := []struct {
		Name     string
		Setup    func(h *mockAMQPChannelHandlers)
		Expected func(t *testing.T, q kombu.Queue, err error)
	}{
		{
			Name: "ServerNamed",
			Setup: func(h *mockAMQPChannelHandlers) {
				h.QueueDeclare = func() (amqp091.Queue, error) {
					return amqp091.Queue{Name: "amq.gen-1"}, nil
				}
			},
			Expected: func(t *testing.T, q kombu.Queue, err error) {
				require.NoError(t, err)
				assert.Equal(t, "amq.gen-1", q.Name())
			},
		},
		{
			Name: "ErrFromAMQP",
			Setup: func(h *mockAMQPChannelHandlers) {
				h.QueueDeclare = func() (amqp091.Queue, error) {
					return amqp091.Queue{}, errors.New("PRECONDITION_FAILED")
				}
			},
			Expected: func(t *testing.T, q kombu.Queue, err error) {
				assert.Error(t, err)
				assert.Nil(t, q)
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			h := newDefaultAMQPChannelHandlers()
			tc.Setup(&h)
			q, err := newMockChannel(h).CreateQueue(context.Background(), "", false, true, true)
			tc.Expected(t, q, err)
		})
	}
}

func TestChannel_CreateExchange(t *testing.T) {
	h := newDefaultAMQPChannelHandlers()
	h.ExchangeDeclare = func() error { return errors.New("NOT_ALLOWED") }
	err := newMockChannel(h).CreateExchange(context.Background(), "orders-ex", kombu.ExchangeTypeDirect, true, false)
	assert.Error(t, err)
}

func TestChannel_Close(t *testing.T) {
	var closes int64
	h := newDefaultAMQPChannelHandlers()
	h.Close = func() error {
		atomic.AddInt64(&closes, 1)
		return nil
	}

	ch := newMockChannel(h)
	var notified int64
	ch.NotifyClose(func() { atomic.AddInt64(&notified, 1) })

	require.NoError(t, ch.Close())
	assert.True(t, ch.IsClosed())
	assert.ErrorIs(t, ch.Close(), amqp091.ErrClosed)
	assert.Equal(t, int64(1), atomic.LoadInt64(&closes))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&notified) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestChannel_Close_StopsConsumers(t *testing.T) {
	h := newDefaultAMQPChannelHandlers()
	h.Consume = func() (<-chan amqp091.Delivery, error) {
		return make(chan amqp091.Delivery), nil
	}

	ch := newMockChannel(h)
	msgs, _, err := ch.Consume(context.Background(), "orders", "tag", false, false)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return registered(ch) == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, ch.Close())

	_, ok := <-msgs
	assert.False(t, ok)
}

func TestChannel_Consume_RestartsAfterReconnect(t *testing.T) {
	var consumes int64
	h := newDefaultAMQPChannelHandlers()
	h.Consume = func() (<-chan amqp091.Delivery, error) {
		d := make(chan amqp091.Delivery, 1)
		if atomic.AddInt64(&consumes, 1) > 1 {
			d <- amqp091.Delivery{Body: []byte("after")}
		}
		return d, nil
	}

	ch := newMockChannel(h)
	msgs, stop, err := ch.Consume(context.Background(), "orders", "tag", false, false)
	require.NoError(t, err)
	defer stop()

	assert.Eventually(t, func() bool { return registered(ch) == 1 }, time.Second, 10*time.Millisecond)
	ch.signalConsumers(reconnection)

	select {
	case msg := <-msgs:
		b, rErr := io.ReadAll(msg.Body())
		require.NoError(t, rErr)
		assert.Equal(t, []byte("after"), b)
	case <-time.After(time.Second):
		t.Fatal("no delivery after reconnect")
	}
	assert.Equal(t, int64(2), atomic.LoadInt64(&consumes))
}

func TestChannel_NotifyError(t *testing.T) {
	ch := newMockChannel(newDefaultAMQPChannelHandlers())

	var got kombu.Error
	ch.NotifyError(func(e kombu.Error) { got = e })
	ch.NotifyError(nil)

	ch.emitError(&amqp091.Error{Code: 320, Reason: "CONNECTION_FORCED", Server: true, Recover: true})
	require.NotNil(t, got)
	assert.Equal(t, 320, got.Code())
	assert.True(t, got.FromServer())
}

// registered returns the amount of consumers listening for reconnects on ch.
func registered(ch *channel) int {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.consumers)
}
