/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yamdb/apiserver/config"
	"github.com/yamdb/apiserver/internal/logging"
	"github.com/yamdb/apiserver/internal/mailer"
	"github.com/yamdb/apiserver/internal/mq"
)

// mailRelayCmd delivers mail queued by servers running with MAIL_BACKEND=queue.
var mailRelayCmd = &cobra.Command{
	Use:   "mail-relay",
	Short: "Deliver queued mail over SMTP",
	Long: `Consumes mail envelopes from MAIL_QUEUE on the configured broker and
sends them through SMTP. Usage:

	yamdb mail-relay
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logging.New(cfg.Log, os.Stdout)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		smtp, err := mailer.NewSMTPMailer(cfg.Mail)
		if err != nil {
			return err
		}
		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer queue.Close()

		log.Info("mail relay started", "queue", cfg.Mail.Queue, "broker", cfg.MQ.Backend)
		err = mailer.Relay(ctx, queue, cfg.Mail.Queue, smtp, log)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mail relay: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mailRelayCmd)
}
