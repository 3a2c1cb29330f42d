// Package messaging provides the base Producer and Consumer. Both hold a kombu.Channel
// rather than extending one, declare their entities on it and can be revived onto a
// replacement channel after the previous one died.
//
// A Consumer supports push consumption: Consume registers it with the broker for every
// queue, and each DrainEvents call hands over one delivery after dispatching it to the
// registered callbacks.
package messaging
