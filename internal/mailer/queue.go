package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/yamdb/apiserver/internal/mq"
)

const envelopeContentType = "application/json"

// Publisher is the subset of *mq.MQ used to enqueue mail.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Subscriber is the subset of *mq.MQ used by Relay.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// QueueMailer hands messages to a broker. Send returns once the broker has
// accepted the envelope; Relay performs the actual delivery.
type QueueMailer struct {
	publisher Publisher
	channel   string
}

func NewQueueMailer(publisher Publisher, channel string) *QueueMailer {
	return &QueueMailer{publisher: publisher, channel: channel}
}

func (m *QueueMailer) Send(ctx context.Context, to, subject, body string) error {
	data, err := json.Marshal(Envelope{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	if _, err := m.publisher.Publish(ctx, m.channel, data, map[string]string{
		mq.AttrContentType: envelopeContentType,
	}); err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

// Relay consumes envelopes from channel and delivers each through deliver
// until ctx is cancelled. Malformed envelopes are logged and acknowledged;
// delivery failures are returned to the broker for retry.
func Relay(ctx context.Context, sub Subscriber, channel string, deliver Mailer, log *slog.Logger) error {
	return sub.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil || env.To == "" {
			log.WarnContext(ctx, "dropping malformed mail envelope", "message_id", msg.ID, "error", err)
			return nil
		}
		if err := deliver.Send(ctx, env.To, env.Subject, env.Body); err != nil {
			log.ErrorContext(ctx, "mail delivery failed", "message_id", msg.ID, "to", env.To, "error", err)
			return err
		}
		log.InfoContext(ctx, "mail delivered", "message_id", msg.ID, "to", env.To)
		return nil
	})
}
