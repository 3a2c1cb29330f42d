package compat

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitzanm/kombu"
	"github.com/nitzanm/kombu/entity"
	"github.com/nitzanm/kombu/memory"
	"github.com/nitzanm/kombu/messaging"
)

func names(queues []entity.Queue) []string {
	out := make([]string, 0, len(queues))
	for _, q := range queues {
		out = append(out, q.Name)
	}
	return out
}

// direct publishes bodies to the queue named key through the default exchange.
func direct(t *testing.T, conn kombu.Connection, key string, bodies ...string) {
	p, err := NewPublisher(context.Background(), conn, WithRoutingKey(key))
	require.NoError(t, err)
	defer p.Close()
	send(t, p, bodies...)
}

func TestConsumerSet_Queues(t *testing.T) {
	ctx := context.Background()
	conn := memory.New().Connect()

	a, err := NewConsumer(ctx, conn, WithQueue("A"))
	require.NoError(t, err)
	defer a.Close()
	b, err := NewConsumer(ctx, conn, WithQueue("B"))
	require.NoError(t, err)
	defer b.Close()

	s, err := NewConsumerSet(ctx, conn, nil, []*Consumer{a, b})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, []string{"A", "B"}, names(s.Queues()))

	q, err := s.AddConsumerFromEntry(ctx, "C", entity.EntryOptions{RoutingKey: "c"})
	require.NoError(t, err)
	assert.Equal(t, "C", q.Name)
	assert.Equal(t, []string{"A", "B", "C"}, names(s.Queues()))

	require.NoError(t, s.AddConsumer(ctx, a))
	assert.Equal(t, []string{"A", "B", "C", "A"}, names(s.Queues()))
}

func TestConsumerSet_Entries(t *testing.T) {
	ctx := context.Background()
	broker := memory.New()
	conn := broker.Connect()

	a, err := NewConsumer(ctx, conn, WithQueue("A"))
	require.NoError(t, err)
	defer a.Close()

	entries := []entity.Entry{
		{Name: "video", Options: entity.EntryOptions{Exchange: "media", RoutingKey: "video"}},
		{Name: "image", Options: entity.EntryOptions{Exchange: "media", BindingKey: "image"}},
	}
	s, err := NewConsumerSet(ctx, conn, entries, []*Consumer{a})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"A", "video", "image"}, names(s.Queues()))
	assert.Equal(t, "image", s.Queues()[2].RoutingKey)

	p, err := NewPublisher(ctx, conn, WithExchange("media"))
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Send(ctx, bytes.NewBufferString("clip"), messaging.RoutingKey("video")))
	require.NoError(t, p.Send(ctx, bytes.NewBufferString("photo"), messaging.RoutingKey("image")))

	assert.Equal(t, 1, broker.Depth("video"))
	assert.Equal(t, 1, broker.Depth("image"))
}

func TestConsumerSet_IterConsume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broker := memory.New()
	conn := &recordingConn{Connection: broker.Connect()}

	var dispatched int
	s, err := NewConsumerSet(ctx, conn, []entity.Entry{{Name: "A"}, {Name: "B"}}, nil,
		WithNoAck(true),
		WithCallbacks(func(kombu.Message) { dispatched++ }),
	)
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, s.NoAck())
	ch := conn.last()

	direct(t, conn, "A", "a1", "a2")
	direct(t, conn, "B", "b1")

	msgs, err := s.Wait(ctx, 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2", "b1"}, bodies(t, msgs))
	assert.Equal(t, 3, dispatched)
	// one registration per queue, made once.
	assert.Equal(t, 2, ch.consumes)
}

func TestConsumerSet_DiscardAll(t *testing.T) {
	ctx := context.Background()
	broker := memory.New()
	conn := broker.Connect()

	s, err := NewConsumerSet(ctx, conn, []entity.Entry{{Name: "A"}, {Name: "B"}}, nil)
	require.NoError(t, err)
	defer s.Close()

	direct(t, conn, "A", "1", "2")
	direct(t, conn, "B", "3")

	n, err := s.DiscardAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, broker.Depth("A"))
	assert.Equal(t, 0, broker.Depth("B"))
}

func TestConsumerSet_Close(t *testing.T) {
	ctx := context.Background()
	conn := &recordingConn{Connection: memory.New().Connect()}

	s, err := NewConsumerSet(ctx, conn, []entity.Entry{{Name: "A"}}, nil)
	require.NoError(t, err)
	ch := conn.last()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, ch.closes)
	assert.True(t, ch.IsClosed())

	_, err = s.DiscardAll(ctx)
	assert.Equal(t, ErrClosed, err)
	_, err = s.AddConsumerFromEntry(ctx, "B", entity.EntryOptions{})
	assert.Equal(t, ErrClosed, err)
	_, err = s.Wait(ctx, 1)
	assert.Equal(t, ErrClosed, err)
}

func TestConsumerSet_Revive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broker := memory.New()
	conn := &recordingConn{Connection: broker.Connect()}

	s, err := NewConsumerSet(ctx, conn, []entity.Entry{{Name: "A"}}, nil, WithNoAck(true))
	require.NoError(t, err)
	defer s.Close()

	_ = s.Backend().Close()
	_, err = s.DiscardAll(ctx)
	assert.True(t, errors.Is(err, memory.ErrClosed))

	ch, err := conn.Channel()
	require.NoError(t, err)
	require.NoError(t, s.Revive(ctx, ch))

	direct(t, conn, "A", "after")
	msgs, err := s.Wait(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"after"}, bodies(t, msgs))
}

func TestConsumerSet_ReviveServerNamedQueue(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	conn := &recordingConn{Connection: b.Connect()}

	c, err := NewConsumer(ctx, conn, WithExchange("events"), WithExchangeType(kombu.ExchangeTypeFanout), WithDurable(false))
	require.NoError(t, err)
	defer c.Close()

	s, err := NewConsumerSet(ctx, conn, nil, []*Consumer{c})
	require.NoError(t, err)
	defer s.Close()

	shared := c.Queue().Name
	assert.Equal(t, []string{shared}, names(s.Queues()))

	_ = s.Backend().Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	require.NoError(t, s.Revive(ctx, ch))

	queues := s.Queues()
	require.Len(t, queues, 1)
	assert.NotEqual(t, shared, queues[0].Name)
	assert.True(t, b.HasQueue(queues[0].Name))
	assert.Equal(t, "events", queues[0].Exchange.Name)
}

func TestNewConsumerSet_Err(t *testing.T) {
	conn := &recordingConn{Connection: memory.New().Connect(), err: errors.New("no channel")}
	s, err := NewConsumerSet(context.Background(), conn, []entity.Entry{{Name: "A"}}, nil)
	assert.Equal(t, errors.New("no channel"), err)
	assert.Nil(t, s)
}
