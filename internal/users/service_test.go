package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotaf-bot/shotaf/internal/auth"
)

type fakeRepo struct {
	users   map[string]*User
	getErr  error
	getByID int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*User)}
}

func (f *fakeRepo) Create(_ context.Context, user *User) error {
	if _, ok := f.users[user.ID]; !ok {
		u := *user
		u.CreatedAt = time.Now()
		f.users[user.ID] = &u
	}
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*User, error) {
	f.getByID++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.users[id], nil
}

func (f *fakeRepo) GetByPhone(_ context.Context, phone string) (*User, error) {
	for _, u := range f.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) SetAuthorized(_ context.Context, id string, authorized bool) error {
	if u, ok := f.users[id]; ok {
		u.Authorized = authorized
	}
	return nil
}

func (f *fakeRepo) SetChannelCredentials(_ context.Context, id, instanceID, tokenEnc string) error {
	if u, ok := f.users[id]; ok {
		u.GreenInstanceID = instanceID
		u.GreenTokenEncoded = tokenEnc
	}
	return nil
}

func TestUserIDFromPhone(t *testing.T) {
	assert.Equal(t, "usr_234567", UserIDFromPhone("972501234567"))
	assert.Equal(t, "usr_12345", UserIDFromPhone("12345"))
}

func TestEnsureByPhoneCreatesOnce(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	u1, err := svc.EnsureByPhone(context.Background(), "972501234567")
	require.NoError(t, err)
	assert.Equal(t, "usr_234567", u1.ID)
	assert.False(t, u1.Authorized)

	u2, err := svc.EnsureByPhone(context.Background(), "972501234567")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
	assert.Len(t, repo.users, 1)
}

func TestLookupByPhoneRequiresAuthorization(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	_, err := svc.EnsureByPhone(context.Background(), "972501234567")
	require.NoError(t, err)

	_, ok, err := svc.LookupByPhone(context.Background(), "972501234567")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetAuthorized(context.Background(), "usr_234567", true))

	id, ok, err := svc.LookupByPhone(context.Background(), "972501234567")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "usr_234567", id)
}

func TestChannelCredentialsRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	enc, err := auth.NewEncryptor("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	svc := NewService(repo, enc)

	_, err = svc.EnsureByPhone(context.Background(), "972501234567")
	require.NoError(t, err)

	// No linked instance yet: the phone rides the shared channel.
	_, _, ok, err := svc.ChannelCredentialsForPhone(context.Background(), "972501234567")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.SetChannelCredentials(context.Background(), "usr_234567", "7103001234", "green-token"))

	// Token is never stored in the clear.
	assert.NotEqual(t, "green-token", repo.users["usr_234567"].GreenTokenEncoded)
	assert.NotEmpty(t, repo.users["usr_234567"].GreenTokenEncoded)

	inst, token, ok, err := svc.ChannelCredentialsForPhone(context.Background(), "972501234567")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7103001234", inst)
	assert.Equal(t, "green-token", token)
}

func TestAuthorizerCachesWithinTTL(t *testing.T) {
	repo := newFakeRepo()
	repo.users["usr_234567"] = &User{ID: "usr_234567", Authorized: true}

	a := NewAuthorizer(repo, time.Minute)

	ok, err := a.IsAuthorized(context.Background(), "usr_234567")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.IsAuthorized(context.Background(), "usr_234567")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, repo.getByID)
}

func TestAuthorizerUnknownUser(t *testing.T) {
	a := NewAuthorizer(newFakeRepo(), time.Minute)

	ok, err := a.IsAuthorized(context.Background(), "usr_999999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizerDoesNotCacheErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = errors.New("store down")
	a := NewAuthorizer(repo, time.Minute)

	_, err := a.IsAuthorized(context.Background(), "usr_234567")
	require.Error(t, err)

	repo.getErr = nil
	repo.users["usr_234567"] = &User{ID: "usr_234567", Authorized: true}

	ok, err := a.IsAuthorized(context.Background(), "usr_234567")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorizerInvalidate(t *testing.T) {
	repo := newFakeRepo()
	repo.users["usr_234567"] = &User{ID: "usr_234567", Authorized: true}
	a := NewAuthorizer(repo, time.Minute)

	_, err := a.IsAuthorized(context.Background(), "usr_234567")
	require.NoError(t, err)

	a.Invalidate("usr_234567")

	_, err = a.IsAuthorized(context.Background(), "usr_234567")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.getByID)
}
