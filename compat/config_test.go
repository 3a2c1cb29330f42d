package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nitzanm/kombu"
	"github.com/nitzanm/kombu/entity"
)

func TestConfig(t *testing.T) {
	tt := []struct {
		Name     string
		Options  []Option
		Expected entity.Queue
	}{
		{
			Name: "Defaults",
			Expected: entity.Queue{
				Exchange: entity.Exchange{Type: kombu.ExchangeTypeDirect, Durable: true},
				Durable:  true,
			},
		},
		{
			Name: "Overrides",
			Options: []Option{
				WithQueue("orders"),
				WithExchange("orders-ex"),
				WithExchangeType(kombu.ExchangeTypeTopic),
				WithRoutingKey("order.*"),
				WithDurable(false),
				WithExclusive(true),
				WithAutoDelete(true),
			},
			Expected: entity.Queue{
				Name:       "orders",
				Exchange:   entity.Exchange{Name: "orders-ex", Type: kombu.ExchangeTypeTopic, AutoDelete: true},
				RoutingKey: "order.*",
				Exclusive:  true,
				AutoDelete: true,
			},
		},
		{
			Name:    "FalseOverridesTrueDefault",
			Options: []Option{WithDurable(false)},
			Expected: entity.Queue{
				Exchange: entity.Exchange{Type: kombu.ExchangeTypeDirect},
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Expected, newConfig(tc.Options).queueEntity())
		})
	}
}

func TestConfig_ExchangeEntity(t *testing.T) {
	e := entity.Exchange{Name: "logs", Type: kombu.ExchangeTypeFanout}
	cfg := newConfig([]Option{WithExchange("ignored"), WithExchangeEntity(e)})
	assert.Equal(t, e, cfg.exchangeEntity())
}

func TestConfig_NoAckAndCallbacks(t *testing.T) {
	cfg := newConfig([]Option{WithNoAck(true), WithCallbacks(func(kombu.Message) {}, func(kombu.Message) {})})
	assert.True(t, cfg.NoAck)
	assert.Len(t, cfg.Callbacks, 2)
}

func TestOwnership_String(t *testing.T) {
	assert.Equal(t, "owned", Owned.String())
	assert.Equal(t, "borrowed", Borrowed.String())
}
