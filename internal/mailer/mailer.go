// Package mailer delivers confirmation codes and other account mail.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yamdb/apiserver/config"
)

// Mailer sends a plain-text message to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Envelope is the queued form of a message.
type Envelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// New returns the mailer selected by cfg.Backend. publisher is only used by
// the queue backend and may be nil otherwise.
func New(cfg config.MailConfig, publisher Publisher, log *slog.Logger) (Mailer, error) {
	switch cfg.Backend {
	case "smtp":
		return NewSMTPMailer(cfg)
	case "queue":
		if publisher == nil {
			return nil, errors.New("queue mail backend requires a message queue")
		}
		return NewQueueMailer(publisher, cfg.Queue), nil
	case "log", "":
		return NewLogMailer(log), nil
	}
	return nil, fmt.Errorf("unknown MAIL_BACKEND %q", cfg.Backend)
}

// LogMailer writes messages to the log instead of sending them. Meant for
// development.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.log.InfoContext(ctx, "mail", "to", to, "subject", subject, "body", body)
	return nil
}
