package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	phone string
	text  string
	fail  bool
}

func (c *captureSender) Send(_ context.Context, phone, text string) error {
	if c.fail {
		return assert.AnError
	}
	c.phone = phone
	c.text = text
	return nil
}

type fakeLookup struct {
	userID string
	known  bool
}

func (f *fakeLookup) LookupByPhone(_ context.Context, _ string) (string, bool, error) {
	return f.userID, f.known, nil
}

func setupService(t *testing.T) (*Service, *captureSender, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	sender := &captureSender{}
	jwt := NewJWTManager(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour)
	svc := NewService(jwt, rdb, sender, &fakeLookup{userID: "usr_234567", known: true})
	return svc, sender, mr
}

func sentCode(t *testing.T, sender *captureSender) string {
	t.Helper()
	fields := strings.Fields(sender.text)
	require.NotEmpty(t, fields)
	code := fields[len(fields)-1]
	require.Len(t, code, 6)
	return code
}

func TestRequestAndVerifyCode(t *testing.T) {
	svc, sender, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "972501234567"))
	assert.Equal(t, "972501234567", sender.phone)

	pair, err := svc.VerifyCode(ctx, "972501234567", sentCode(t, sender))
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestVerifyCodeRejectsWrongCode(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "972501234567"))

	_, err := svc.VerifyCode(ctx, "972501234567", "000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid or expired")
}

func TestVerifyCodeIsSingleUse(t *testing.T) {
	svc, sender, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "972501234567"))
	code := sentCode(t, sender)

	_, err := svc.VerifyCode(ctx, "972501234567", code)
	require.NoError(t, err)

	_, err = svc.VerifyCode(ctx, "972501234567", code)
	assert.Error(t, err)
}

func TestVerifyCodeStoreFailureIsNotWrongCode(t *testing.T) {
	svc, sender, mr := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "972501234567"))
	code := sentCode(t, sender)

	// A Redis outage must surface as an infrastructure error, not as an
	// invalid-code rejection of a correct code.
	mr.Close()
	_, err := svc.VerifyCode(ctx, "972501234567", code)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "invalid or expired")
	assert.Contains(t, err.Error(), "reading code")
}

func TestRefreshRotationRevokesOldToken(t *testing.T) {
	svc, sender, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "972501234567"))
	pair, err := svc.VerifyCode(ctx, "972501234567", sentCode(t, sender))
	require.NoError(t, err)

	_, err = svc.RefreshTokens(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = svc.RefreshTokens(ctx, pair.RefreshToken)
	assert.Error(t, err)
}
