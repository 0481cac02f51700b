package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

// GreenAPISender sends messages through the Green API sendMessage endpoint.
type GreenAPISender struct {
	baseURL    string
	instanceID string
	token      string
	httpClient *http.Client
}

func NewGreenAPISender(baseURL, instanceID, token string) *GreenAPISender {
	return &GreenAPISender{
		baseURL:    baseURL,
		instanceID: instanceID,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// Send posts a text message to the given phone number. The phone is the
// bare number without the @c.us suffix.
func (s *GreenAPISender) Send(ctx context.Context, phone, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:  phone + "@c.us",
		Message: text,
	})
	if err != nil {
		return fmt.Errorf("marshaling send request: %w", err)
	}

	url := fmt.Sprintf("%s/waInstance%s/sendMessage/%s", s.baseURL, s.instanceID, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send message returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// CredentialSource resolves per-user Green API credentials for a
// delivery target. ok=false means the target rides the shared instance.
type CredentialSource interface {
	ChannelCredentialsForPhone(ctx context.Context, phone string) (instanceID, token string, ok bool, err error)
}

// PerUserSender delivers each message through the recipient's own Green
// API instance when one is linked, and through the bot-level sender
// otherwise. A failed credential lookup falls back to the shared
// instance rather than dropping the message.
type PerUserSender struct {
	baseURL    string
	fallback   Sender
	creds      CredentialSource
	httpClient *http.Client
}

func NewPerUserSender(baseURL string, fallback Sender, creds CredentialSource) *PerUserSender {
	return &PerUserSender{
		baseURL:    baseURL,
		fallback:   fallback,
		creds:      creds,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *PerUserSender) Send(ctx context.Context, phone, text string) error {
	instanceID, token, ok, err := s.creds.ChannelCredentialsForPhone(ctx, phone)
	if err != nil {
		slog.Warn("resolving channel credentials", "error", err, "phone", phone)
		return s.fallback.Send(ctx, phone, text)
	}
	if !ok {
		return s.fallback.Send(ctx, phone, text)
	}

	user := &GreenAPISender{
		baseURL:    s.baseURL,
		instanceID: instanceID,
		token:      token,
		httpClient: s.httpClient,
	}
	return user.Send(ctx, phone, text)
}
