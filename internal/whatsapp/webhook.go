package whatsapp

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/shotaf-bot/shotaf/internal/nats"
)

// maxWebhookBody caps the accepted webhook payload size.
const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler receives Green API notifications and publishes private
// incoming text messages to NATS for orchestrator processing.
type WebhookHandler struct {
	publisher *nats.Publisher
}

func NewWebhookHandler(publisher *nats.Publisher) *WebhookHandler {
	return &WebhookHandler{publisher: publisher}
}

// Handle processes a webhook POST. It always responds 200 so the provider
// does not retry: messages we cannot parse are logged and dropped.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		slog.Warn("reading webhook body", "error", err)
		return
	}

	msg, ok := ParseNotification(body)
	if !ok {
		return
	}

	if err := h.publisher.PublishInboundMessage(r.Context(), msg); err != nil {
		slog.Error("publishing inbound message", "error", err, "chat_id", msg.ChatID)
	}
}

// ParseNotification extracts an inbound message from a Green API webhook
// payload. It returns false for anything that is not a private incoming
// text message: group chats, status updates, media without text.
func ParseNotification(body []byte) (nats.InboundMessage, bool) {
	root := gjson.ParseBytes(body)

	if root.Get("typeWebhook").String() != "incomingMessageReceived" {
		return nats.InboundMessage{}, false
	}

	chatID := root.Get("senderData.chatId").String()
	if !strings.HasSuffix(chatID, "@c.us") {
		// Group messages end with @g.us and are ignored.
		return nats.InboundMessage{}, false
	}

	text := root.Get("messageData.textMessageData.textMessage").String()
	if text == "" {
		text = root.Get("messageData.extendedTextMessageData.text").String()
	}
	if strings.TrimSpace(text) == "" {
		return nats.InboundMessage{}, false
	}

	return nats.InboundMessage{
		ID:         uuid.New().String(),
		ChatID:     chatID,
		Phone:      strings.TrimSuffix(chatID, "@c.us"),
		Body:       text,
		ReceivedAt: time.Now().UTC(),
	}, true
}
