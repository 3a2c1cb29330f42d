package main

import (
	"context"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nitzanm/kombu"
	"github.com/nitzanm/kombu/internal/config"
	"github.com/nitzanm/kombu/rabbitmq"
)

var (
	cfgFile string
	cfg     config.Config
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:          "kombu",
	Short:        "publish to and consume from amqp destinations",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		}
		var err error
		if cfg, err = config.Load(v); err != nil {
			return err
		}
		log.SetLevel(cfg.Level())
		return nil
	},
}

// Execute runs the command line, exiting non zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogger)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "configuration file (default ./kombu.yaml)")
	flags.String("url", "", "broker url")
	flags.StringP("exchange", "e", "", "exchange name, empty for the default exchange")
	flags.String("exchange-type", "", "exchange type: direct, fanout, topic or headers")
	flags.StringP("routing-key", "k", "", "routing key")
	flags.StringP("queue", "q", "", "queue name")
	flags.Bool("no-ack", false, "consume without acknowledgements")

	for key, flag := range map[string]string{
		"url":           "url",
		"exchange":      "exchange",
		"exchange_type": "exchange-type",
		"routing_key":   "routing-key",
		"queue":         "queue",
		"no_ack":        "no-ack",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}

func initLogger() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

// connect dials the configured broker.
var connect = func(ctx context.Context) (kombu.Connection, error) {
	return rabbitmq.Dial(ctx, cfg.URL)()
}

// printBody writes the body of msg on its own line.
func printBody(w io.Writer, msg kombu.Message) error {
	if _, err := io.Copy(w, msg.Body()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// settle acknowledges msg unless messages are auto acknowledged.
func settle(msg kombu.Message) error {
	if cfg.NoAck {
		return nil
	}
	return msg.Ack()
}
