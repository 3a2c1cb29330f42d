package compat

import (
	"github.com/nitzanm/kombu"
	"github.com/nitzanm/kombu/entity"
	"github.com/nitzanm/kombu/messaging"
)

// Defaults applied before any Option.
const (
	DefaultExchangeType = kombu.ExchangeTypeDirect
	DefaultDurable      = true
	DefaultExclusive    = false
	DefaultAutoDelete   = false
)

// Config the resolved settings of an adapter. Build it with DefaultConfig and Options;
// every option overrides exactly one default.
//
//	| field        | default                   |
//	|--------------|---------------------------|
//	| Exchange     | "" (the default exchange) |
//	| ExchangeType | direct                    |
//	| RoutingKey   | ""                        |
//	| Queue        | "" (server named)         |
//	| Durable      | true                      |
//	| Exclusive    | false                     |
//	| AutoDelete   | false                     |
//	| NoAck        | false                     |
type Config struct {
	Exchange     string
	ExchangeType kombu.ExchangeType
	RoutingKey   string
	Queue        string
	Durable      bool
	Exclusive    bool
	AutoDelete   bool
	NoAck        bool
	Callbacks    []messaging.Callback

	// exchange a prebuilt descriptor used as is by a Publisher.
	exchange *entity.Exchange
	// channel a caller owned channel used by a Publisher.
	channel kombu.Channel
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		ExchangeType: DefaultExchangeType,
		Durable:      DefaultDurable,
		Exclusive:    DefaultExclusive,
		AutoDelete:   DefaultAutoDelete,
	}
}

// Option overrides one default.
type Option func(*Config)

func newConfig(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithExchange sets the exchange name.
func WithExchange(name string) Option {
	return func(c *Config) { c.Exchange = name }
}

// WithExchangeEntity makes a Publisher use e instead of building a descriptor from
// the exchange options.
func WithExchangeEntity(e entity.Exchange) Option {
	return func(c *Config) { c.exchange = &e }
}

// WithExchangeType sets the exchange type.
func WithExchangeType(typ kombu.ExchangeType) Option {
	return func(c *Config) { c.ExchangeType = typ }
}

// WithRoutingKey sets the routing key, used to publish and to bind.
func WithRoutingKey(key string) Option {
	return func(c *Config) { c.RoutingKey = key }
}

// WithQueue sets the queue name of a Consumer.
func WithQueue(name string) Option {
	return func(c *Config) { c.Queue = name }
}

// WithDurable sets whether the exchange and queue survive a broker restart.
func WithDurable(durable bool) Option {
	return func(c *Config) { c.Durable = durable }
}

// WithExclusive sets whether the queue is exclusive to the consumer connection.
func WithExclusive(exclusive bool) Option {
	return func(c *Config) { c.Exclusive = exclusive }
}

// WithAutoDelete sets whether the exchange and queue are removed once unused.
func WithAutoDelete(autoDelete bool) Option {
	return func(c *Config) { c.AutoDelete = autoDelete }
}

// WithNoAck sets whether consumed messages are acknowledged by the broker on delivery.
func WithNoAck(noAck bool) Option {
	return func(c *Config) { c.NoAck = noAck }
}

// WithCallbacks registers consumer callbacks.
func WithCallbacks(callbacks ...messaging.Callback) Option {
	return func(c *Config) { c.Callbacks = append(c.Callbacks, callbacks...) }
}

// WithChannel makes a Publisher borrow ch instead of opening its own channel.
// A borrowed channel is never closed by the Publisher. Consumers ignore it.
func WithChannel(ch kombu.Channel) Option {
	return func(c *Config) { c.channel = ch }
}

// exchangeEntity the exchange descriptor described by the config.
func (c Config) exchangeEntity() entity.Exchange {
	if c.exchange != nil {
		return *c.exchange
	}
	return entity.Exchange{
		Name:       c.Exchange,
		Type:       c.ExchangeType,
		Durable:    c.Durable,
		AutoDelete: c.AutoDelete,
	}
}

// queueEntity the queue descriptor described by the config, bound to its exchange.
func (c Config) queueEntity() entity.Queue {
	return entity.Queue{
		Name:       c.Queue,
		Exchange:   c.exchangeEntity(),
		RoutingKey: c.RoutingKey,
		Durable:    c.Durable,
		Exclusive:  c.Exclusive,
		AutoDelete: c.AutoDelete,
	}
}

// Ownership tells whether an adapter is responsible for closing its channel.
type Ownership int

const (
	// Owned the adapter opened the channel and closes it.
	Owned Ownership = iota
	// Borrowed the caller supplied the channel and keeps responsibility for it.
	Borrowed
)

func (o Ownership) String() string {
	if o == Borrowed {
		return "borrowed"
	}
	return "owned"
}
