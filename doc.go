// Package kombu defines the generic broker capabilities the messaging adapters are built on.
//
// The interfaces only describe operations expected from an AMQP style broker: exchanges, queues,
// channels and connections. A transport becomes usable by the rest of the module once it implements
// Connection and Channel; the adapters never reach below these interfaces.
//
// Implementations shipped with the module:
//   - rabbitmq (github.com/nitzanm/kombu/rabbitmq), backed by amqp091-go.
//   - memory (github.com/nitzanm/kombu/memory), an in-process broker for tests and local runs.
//
// Destination descriptors live in the entity package, the base producer and consumer in messaging
// and the legacy Publisher/Consumer/ConsumerSet adapters in compat.
package kombu
