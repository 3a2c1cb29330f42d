package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "remove every ready message from the queue and every configured queue entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
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

		n, err := set.DiscardAll(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d messages\n", n)
		return err
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}
