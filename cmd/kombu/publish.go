package main

import (
	"bufio"
	"bytes"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nitzanm/kombu/compat"
)

var publishCmd = &cobra.Command{
	Use:   "publish [body...]",
	Short: "publish every argument, or every line of stdin, as a message",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		return compat.UsePublisher(ctx, conn, func(p *compat.Publisher) error {
			send := func(body []byte) error {
				if err := p.Send(ctx, bytes.NewReader(body)); err != nil {
					return err
				}
				log.WithFields(log.Fields{
					"exchange":    p.Exchange().Name,
					"routing_key": p.RoutingKey(),
				}).Debug("published")
				return nil
			}

			if len(args) > 0 {
				for _, arg := range args {
					if err := send([]byte(arg)); err != nil {
						return err
					}
				}
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if err := send(scanner.Bytes()); err != nil {
					return err
				}
			}
			return scanner.Err()
		}, cfg.Options()...)
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
}
