package entity

import (
	"github.com/nitzanm/kombu"
)

// EntryOptions the declarative options a queue entry is built from.
// Unset pointer fields fall back to the less specific option, then to the default.
type EntryOptions struct {
	Exchange     string             `mapstructure:"exchange"`
	ExchangeType kombu.ExchangeType `mapstructure:"exchange_type"`
	RoutingKey   string             `mapstructure:"routing_key"`
	// BindingKey overrides RoutingKey for the binding.
	BindingKey string `mapstructure:"binding_key"`

	Durable            *bool `mapstructure:"durable"`
	ExchangeDurable    *bool `mapstructure:"exchange_durable"`
	QueueDurable       *bool `mapstructure:"queue_durable"`
	AutoDelete         *bool `mapstructure:"auto_delete"`
	ExchangeAutoDelete *bool `mapstructure:"exchange_auto_delete"`
	QueueAutoDelete    *bool `mapstructure:"queue_auto_delete"`

	Exclusive bool `mapstructure:"exclusive"`
	NoAck     bool `mapstructure:"no_ack"`
}

// Entry a named queue entry.
type Entry struct {
	Name    string
	Options EntryOptions
}

// Queue converts the entry to a queue descriptor.
func (e Entry) Queue() Queue {
	return EntryToQueue(e.Name, e.Options)
}

// EntryToQueue builds the queue descriptor for a declarative entry.
//
// Without an exchange the queue sits on the broker default exchange. The binding key is
// BindingKey, else RoutingKey. Durability and auto delete resolve per entity from the
// exchange or queue specific option, then the shared one, then true and false respectively.
func EntryToQueue(name string, o EntryOptions) Queue {
	bindingKey := o.BindingKey
	if bindingKey == "" {
		bindingKey = o.RoutingKey
	}

	typ := o.ExchangeType
	if typ == "" {
		typ = kombu.ExchangeTypeDirect
	}

	durable := first(true, o.Durable)
	autoDelete := first(false, o.AutoDelete)

	return Queue{
		Name: name,
		Exchange: Exchange{
			Name:       o.Exchange,
			Type:       typ,
			Durable:    first(durable, o.ExchangeDurable),
			AutoDelete: first(autoDelete, o.ExchangeAutoDelete),
		},
		RoutingKey: bindingKey,
		Durable:    first(durable, o.QueueDurable),
		AutoDelete: first(autoDelete, o.QueueAutoDelete),
		Exclusive:  o.Exclusive,
		NoAck:      o.NoAck,
	}
}

// first returns the first set value, or def.
func first(def bool, values ...*bool) bool {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return def
}
