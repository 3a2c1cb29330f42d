package entity

import (
	"context"

	"github.com/nitzanm/kombu"
)

// Exchange describes an exchange. The zero Name is the broker default exchange.
type Exchange struct {
	Name       string
	Type       kombu.ExchangeType
	Durable    bool
	AutoDelete bool
}

// NewExchange returns a durable direct exchange descriptor.
func NewExchange(name string) Exchange {
	return Exchange{Name: name, Type: kombu.ExchangeTypeDirect, Durable: true}
}

// IsDefault reports whether e is the broker default exchange, which cannot be declared or bound to.
func (e Exchange) IsDefault() bool {
	return e.Name == ""
}

// Declare declares the exchange on ch. Declaring the default exchange is a no-op.
func (e Exchange) Declare(ctx context.Context, ch kombu.Channel) error {
	if e.IsDefault() {
		return nil
	}
	typ := e.Type
	if typ == "" {
		typ = kombu.ExchangeTypeDirect
	}
	return ch.CreateExchange(ctx, e.Name, typ, e.Durable, e.AutoDelete)
}
