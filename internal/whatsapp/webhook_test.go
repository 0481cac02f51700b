package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notification(typeWebhook, chatID, text string) []byte {
	payload := map[string]any{
		"typeWebhook": typeWebhook,
		"senderData": map[string]any{
			"chatId": chatID,
		},
		"messageData": map[string]any{
			"typeMessage": "textMessage",
			"textMessageData": map[string]any{
				"textMessage": text,
			},
		},
	}
	b, _ := json.Marshal(payload)
	return b
}

func TestParseNotificationIncomingText(t *testing.T) {
	msg, ok := ParseNotification(notification("incomingMessageReceived", "972501234567@c.us", "תזכיר לי מחר להתקשר לרופא"))
	require.True(t, ok)

	assert.Equal(t, "972501234567@c.us", msg.ChatID)
	assert.Equal(t, "972501234567", msg.Phone)
	assert.Equal(t, "תזכיר לי מחר להתקשר לרופא", msg.Body)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.ReceivedAt.IsZero())
}

func TestParseNotificationIgnoresOtherWebhookTypes(t *testing.T) {
	_, ok := ParseNotification(notification("outgoingMessageStatus", "972501234567@c.us", "hi"))
	assert.False(t, ok)
}

func TestParseNotificationIgnoresGroupChats(t *testing.T) {
	_, ok := ParseNotification(notification("incomingMessageReceived", "120363040@g.us", "hi"))
	assert.False(t, ok)
}

func TestParseNotificationIgnoresEmptyText(t *testing.T) {
	_, ok := ParseNotification(notification("incomingMessageReceived", "972501234567@c.us", "   "))
	assert.False(t, ok)
}

func TestParseNotificationExtendedText(t *testing.T) {
	payload := map[string]any{
		"typeWebhook": "incomingMessageReceived",
		"senderData":  map[string]any{"chatId": "972501234567@c.us"},
		"messageData": map[string]any{
			"typeMessage": "extendedTextMessage",
			"extendedTextMessageData": map[string]any{
				"text": "quoted reply",
			},
		},
	}
	b, _ := json.Marshal(payload)

	msg, ok := ParseNotification(b)
	require.True(t, ok)
	assert.Equal(t, "quoted reply", msg.Body)
}

func TestParseNotificationGarbage(t *testing.T) {
	_, ok := ParseNotification([]byte("not json at all"))
	assert.False(t, ok)
}

func TestGreenAPISenderSend(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewGreenAPISender(srv.URL, "1101000001", "token123")
	err := s.Send(context.Background(), "972501234567", "⏰ תזכורת: לקנות חלב")
	require.NoError(t, err)

	assert.Equal(t, "/waInstance1101000001/sendMessage/token123", gotPath)
	assert.Equal(t, "972501234567@c.us", gotBody.ChatID)
	assert.Equal(t, "⏰ תזכורת: לקנות חלב", gotBody.Message)
}

func TestGreenAPISenderSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad instance", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewGreenAPISender(srv.URL, "1101000001", "token123")
	err := s.Send(context.Background(), "972501234567", "hi")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
