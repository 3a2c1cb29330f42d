package compat

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nitzanm/kombu"
)

// recordingChannel counts the consume registrations and closes of a channel.
type recordingChannel struct {
	kombu.Channel
	consumes int
	closes   int
}

func (c *recordingChannel) Consume(ctx context.Context, queue, consumerTag string, autoAck, exclusive bool) (<-chan kombu.Message, kombu.CancelFunc, error) {
	c.consumes++
	return c.Channel.Consume(ctx, queue, consumerTag, autoAck, exclusive)
}

func (c *recordingChannel) Close() error {
	c.closes++
	return c.Channel.Close()
}

// recordingConn hands out recording channels, or err when set.
type recordingConn struct {
	kombu.Connection
	err      error
	channels []*recordingChannel
}

func (c *recordingConn) Channel() (kombu.Channel, error) {
	if c.err != nil {
		return nil, c.err
	}
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	rc := &recordingChannel{Channel: ch}
	c.channels = append(c.channels, rc)
	return rc, nil
}

func (c *recordingConn) last() *recordingChannel {
	return c.channels[len(c.channels)-1]
}

func body(t *testing.T, msg kombu.Message) string {
	require.NotNil(t, msg)
	b, err := io.ReadAll(msg.Body())
	require.NoError(t, err)
	return string(b)
}

func bodies(t *testing.T, msgs []kombu.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, body(t, msg))
	}
	return out
}
