package rabbitmq

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// maxReconnectAttempts the amount of redials performed before a connection or channel gives up.
const maxReconnectAttempts = 3

// newBackoff the function to generate the reconnect policy,
// a variable in order to reduce the backoff in tests.
var newBackoff = defaultBackoff

// defaultBackoff generates a new backoff to use when performing reconnects.
func defaultBackoff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxReconnectAttempts), ctx)
}
