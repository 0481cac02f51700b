package users

import (
	"context"
	"fmt"

	"github.com/shotaf-bot/shotaf/internal/auth"
)

// Service owns user bootstrap and channel credential handling.
type Service struct {
	repo      Repository
	encryptor *auth.Encryptor
}

func NewService(repo Repository, encryptor *auth.Encryptor) *Service {
	return &Service{repo: repo, encryptor: encryptor}
}

// UserIDFromPhone derives the stable user id from a phone number: the
// "usr_" prefix plus the number's last six digits.
func UserIDFromPhone(phone string) string {
	digits := phone
	if len(digits) > 6 {
		digits = digits[len(digits)-6:]
	}
	return "usr_" + digits
}

// EnsureByPhone returns the user for a phone number, creating an
// unauthorized record on first contact.
func (s *Service) EnsureByPhone(ctx context.Context, phone string) (*User, error) {
	id := UserIDFromPhone(phone)

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &User{ID: id, Phone: phone}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID returns the user or nil when absent.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// LookupByPhone implements the auth login lookup: only authorized users
// may log in to the dashboard.
func (s *Service) LookupByPhone(ctx context.Context, phone string) (string, bool, error) {
	user, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return "", false, err
	}
	if user == nil || !user.Authorized {
		return "", false, nil
	}
	return user.ID, true, nil
}

// SetChannelCredentials stores a user-linked Green API channel, token
// encrypted at rest.
func (s *Service) SetChannelCredentials(ctx context.Context, userID, instanceID, token string) error {
	tokenEnc, err := s.encryptor.Encrypt(token)
	if err != nil {
		return fmt.Errorf("encrypting channel token: %w", err)
	}
	return s.repo.SetChannelCredentials(ctx, userID, instanceID, tokenEnc)
}

// ChannelCredentials returns a user's decrypted Green API credentials,
// or ok=false when the user rides the shared instance.
func (s *Service) ChannelCredentials(ctx context.Context, userID string) (instanceID, token string, ok bool, err error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", "", false, err
	}
	if user == nil || user.GreenInstanceID == "" || user.GreenTokenEncoded == "" {
		return "", "", false, nil
	}

	token, err = s.encryptor.Decrypt(user.GreenTokenEncoded)
	if err != nil {
		return "", "", false, fmt.Errorf("decrypting channel token: %w", err)
	}
	return user.GreenInstanceID, token, true, nil
}

// ChannelCredentialsForPhone resolves send credentials for a delivery
// target phone. This is the lookup the per-user sender uses.
func (s *Service) ChannelCredentialsForPhone(ctx context.Context, phone string) (instanceID, token string, ok bool, err error) {
	return s.ChannelCredentials(ctx, UserIDFromPhone(phone))
}
