package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nitzanm/kombu"
	"github.com/nitzanm/kombu/compat"
)

var drainLimit int

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "consume the queue and every configured queue entry, printing message bodies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		set, err := consumerSet(ctx, conn)
		if err != nil {
			return err
		}
		defer set.Close()

		set.Register(func(msg kombu.Message) {
			log.WithFields(log.Fields{
				"exchange":    msg.Exchange(),
				"routing_key": msg.RoutingKey(),
				"redelivered": msg.Redelivered(),
			}).Debug("delivered")
		})

		it := set.IterConsume(drainLimit)
		for it.Next(ctx) {
			if err := printBody(cmd.OutOrStdout(), it.Message()); err != nil {
				return err
			}
			if err := settle(it.Message()); err != nil {
				return err
			}
		}
		if err := it.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.WithField("messages", it.Count()).Info("drained")
		return nil
	},
}

// consumerSet consumes the configured queue, when there is one, and every queue entry.
func consumerSet(ctx context.Context, conn kombu.Connection) (*compat.ConsumerSet, error) {
	entries := cfg.Entries()
	if cfg.Queue == "" && len(entries) == 0 {
		return nil, errors.New("drain: no queue or queue entries configured")
	}

	var consumers []*compat.Consumer
	if cfg.Queue != "" {
		c, err := compat.NewConsumer(ctx, conn, cfg.Options()...)
		if err != nil {
			return nil, err
		}
		// only the queue declaration is needed, the set consumes on its own channel.
		defer c.Close()
		consumers = append(consumers, c)
	}
	return compat.NewConsumerSet(ctx, conn, entries, consumers, compat.WithNoAck(cfg.NoAck))
}

func init() {
	rootCmd.AddCommand(drainCmd)

	drainCmd.Flags().IntVarP(&drainLimit, "limit", "n", compat.Unlimited, "stop after this many messages, 0 for no limit")
}
