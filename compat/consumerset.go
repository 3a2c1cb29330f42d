package compat

import (
	"context"

	"github.com/nitzanm/kombu"
	"github.com/nitzanm/kombu/entity"
)

// ConsumerSet consumes from many queues over one channel it opens and owns.
type ConsumerSet struct {
	*base
}

// NewConsumerSet opens a channel from conn and binds the queues of consumers, in order,
// followed by the queues of entries. Duplicates are kept. Of opts only WithNoAck and
// WithCallbacks apply.
func NewConsumerSet(ctx context.Context, conn kombu.Connection, entries []entity.Entry, consumers []*Consumer, opts ...Option) (*ConsumerSet, error) {
	b, err := newBase(ctx, conn, nil, newConfig(opts))
	if err != nil {
		return nil, err
	}
	s := &ConsumerSet{base: b}

	for _, c := range consumers {
		if err := s.consumer.Follow(ctx, c.consumer); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	for _, e := range entries {
		if _, err := s.consumer.AddQueue(ctx, e.Queue()); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// AddConsumerFromEntry declares the queue described by name and o and binds it.
func (s *ConsumerSet) AddConsumerFromEntry(ctx context.Context, name string, o entity.EntryOptions) (entity.Queue, error) {
	if s.closed {
		return entity.Queue{}, ErrClosed
	}
	return s.consumer.AddQueue(ctx, entity.EntryToQueue(name, o))
}

// AddConsumer binds every queue of c. A server named queue keeps the name c declared
// it with until the set is revived.
func (s *ConsumerSet) AddConsumer(ctx context.Context, c *Consumer) error {
	if s.closed {
		return ErrClosed
	}
	return s.consumer.Follow(ctx, c.consumer)
}

// DiscardAll purges every bound queue, returning the amount of messages removed.
func (s *ConsumerSet) DiscardAll(ctx context.Context) (int, error) {
	return s.purge(ctx)
}
