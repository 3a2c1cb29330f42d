// Package compat provides the legacy Publisher, Consumer and ConsumerSet adapters.
//
// The adapters build their destinations from a handful of defaulted options and hide
// channel lifecycle, queue declaration and acknowledgement bookkeeping from the caller.
// Messages are consumed either push style, by registering callbacks and draining
// deliveries one at a time (IterConsume, Wait), or pull style with one retrieval per
// call (Fetch, IterQueue).
//
// Adapters are single owner: drive each one from a single goroutine. Reconnection is the
// caller's job, after detecting a dead channel call Revive with a replacement.
//
//	consumer, err := compat.NewConsumer(ctx, conn,
//		compat.WithQueue("orders"),
//		compat.WithExchange("orders-ex"),
//		compat.WithRoutingKey("new"),
//	)
//	if err != nil {
//		return err
//	}
//	defer consumer.Close()
//
//	it := consumer.IterQueue(10, false)
//	for it.Next(ctx) {
//		handle(it.Message())
//	}
//	return it.Err()
package compat
