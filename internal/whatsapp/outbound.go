package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/shotaf-bot/shotaf/internal/nats"
)

// OutboundWorker consumes outbound messages from JetStream and delivers
// them via the Sender.
type OutboundWorker struct {
	consumer jetstream.Consumer
	sender   Sender
}

func NewOutboundWorker(consumer jetstream.Consumer, sender Sender) *OutboundWorker {
	return &OutboundWorker{consumer: consumer, sender: sender}
}

// Run fetches and delivers outbound messages until ctx is canceled.
func (w *OutboundWorker) Run(ctx context.Context) {
	slog.Info("outbound delivery worker started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("outbound delivery worker stopping")
			return
		default:
		}

		batch, err := w.consumer.Fetch(10, jetstream.FetchMaxWait(nats.FetchTimeout))
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				slog.Warn("fetching outbound messages", "error", err)
			}
			continue
		}

		for msg := range batch.Messages() {
			w.handle(ctx, msg)
		}
	}
}

func (w *OutboundWorker) handle(ctx context.Context, msg jetstream.Msg) {
	var out nats.OutboundMessage
	if err := json.Unmarshal(msg.Data(), &out); err != nil {
		slog.Error("unmarshaling outbound message", "error", err)
		// Malformed payloads never become deliverable; drop them.
		_ = msg.Ack()
		return
	}

	if err := w.sender.Send(ctx, out.Phone, out.Body); err != nil {
		slog.Error("delivering outbound message", "error", err, "phone", out.Phone)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
}
