package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nitzanm/kombu/compat"
)

var (
	fetchLimit int
	fetchWait  bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "fetch messages from the queue one at a time and print their bodies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		return compat.UseConsumer(ctx, conn, func(c *compat.Consumer) error {
			it := c.IterQueue(fetchLimit, fetchWait)
			for it.Next(ctx) {
				if err := printBody(cmd.OutOrStdout(), it.Message()); err != nil {
					return err
				}
				if err := settle(it.Message()); err != nil {
					return err
				}
			}
			return it.Err()
		}, cfg.Options()...)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().IntVarP(&fetchLimit, "limit", "n", compat.Unlimited, "stop after this many messages, 0 for no limit")
	fetchCmd.Flags().BoolVarP(&fetchWait, "wait", "w", false, "wait for messages instead of stopping at an empty queue")
}
