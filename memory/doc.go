// Package memory is an in-process broker implementing kombu.Connection and kombu.Channel.
//
// It routes like an AMQP broker (default, direct, fanout and topic exchanges; headers
// exchanges without binding arguments match every message), supports push consumers,
// basic.get style retrieval, acknowledgements with requeue and purge. Unacknowledged
// messages go back to their queue when the channel they were delivered on closes.
//
// QoS settings are accepted but not enforced and connections never reconnect, so
// NotifyReconnect handlers are never called.
package memory
