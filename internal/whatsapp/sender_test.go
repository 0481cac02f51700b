package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentials struct {
	instanceID string
	token      string
	linked     bool
	err        error
}

func (f *fakeCredentials) ChannelCredentialsForPhone(_ context.Context, _ string) (string, string, bool, error) {
	return f.instanceID, f.token, f.linked, f.err
}

func newCapturingServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func TestPerUserSenderUsesLinkedInstance(t *testing.T) {
	srv, paths := newCapturingServer(t)

	bot := NewGreenAPISender(srv.URL, "1000000001", "bot-token")
	sender := NewPerUserSender(srv.URL, bot, &fakeCredentials{
		instanceID: "7103001234",
		token:      "user-token",
		linked:     true,
	})

	require.NoError(t, sender.Send(context.Background(), "972501234567", "היי"))
	require.Len(t, *paths, 1)
	assert.Equal(t, "/waInstance7103001234/sendMessage/user-token", (*paths)[0])
}

func TestPerUserSenderFallsBackWhenNotLinked(t *testing.T) {
	srv, paths := newCapturingServer(t)

	bot := NewGreenAPISender(srv.URL, "1000000001", "bot-token")
	sender := NewPerUserSender(srv.URL, bot, &fakeCredentials{})

	require.NoError(t, sender.Send(context.Background(), "972501234567", "היי"))
	require.Len(t, *paths, 1)
	assert.Equal(t, "/waInstance1000000001/sendMessage/bot-token", (*paths)[0])
}

func TestPerUserSenderFallsBackOnLookupError(t *testing.T) {
	srv, paths := newCapturingServer(t)

	bot := NewGreenAPISender(srv.URL, "1000000001", "bot-token")
	sender := NewPerUserSender(srv.URL, bot, &fakeCredentials{err: errors.New("store down")})

	// A broken credential store must not drop the message.
	require.NoError(t, sender.Send(context.Background(), "972501234567", "היי"))
	require.Len(t, *paths, 1)
	assert.Equal(t, "/waInstance1000000001/sendMessage/bot-token", (*paths)[0])
}

func TestGreenAPISenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", 466)
	}))
	t.Cleanup(srv.Close)

	sender := NewGreenAPISender(srv.URL, "1000000001", "bot-token")
	err := sender.Send(context.Background(), "972501234567", "היי")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "466")
}
