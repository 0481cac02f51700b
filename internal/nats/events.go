package nats

import "time"

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamMessages = "SHOTAF_MESSAGES"
	StreamEvents   = "SHOTAF_EVENTS"
)

// Subject constants.
const (
	SubjectInboundMessage  = "shotaf.messages.inbound"
	SubjectOutboundMessage = "shotaf.messages.outbound"
	SubjectDeliveryEvent   = "shotaf.events.delivery"
)

// InboundMessage is published when a WhatsApp message arrives at the webhook.
type InboundMessage struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	Phone      string    `json:"phone"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// OutboundMessage is published to send a message back via WhatsApp.
type OutboundMessage struct {
	ID        string `json:"id"`
	Phone     string `json:"phone"`
	Body      string `json:"body"`
	InReplyTo string `json:"in_reply_to,omitempty"`
}

// DeliveryEvent is published after each reminder delivery attempt.
type DeliveryEvent struct {
	UserID    string    `json:"user_id"`
	TaskID    string    `json:"task_id"`
	Frequency string    `json:"frequency"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
