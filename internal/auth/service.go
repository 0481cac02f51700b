package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shotaf-bot/shotaf/internal/whatsapp"
)

const (
	otpLength = 6
	otpTTL    = 5 * time.Minute
)

// UserLookup resolves dashboard logins to bot users. Implemented by the
// users service.
type UserLookup interface {
	LookupByPhone(ctx context.Context, phone string) (userID string, ok bool, err error)
}

// Service issues JWT pairs after a one-time code sent over WhatsApp.
// There are no passwords: possession of the WhatsApp number is the
// login factor.
type Service struct {
	jwt         *JWTManager
	redisClient *redis.Client
	sender      whatsapp.Sender
	users       UserLookup
}

func NewService(jwt *JWTManager, redisClient *redis.Client, sender whatsapp.Sender, users UserLookup) *Service {
	return &Service{
		jwt:         jwt,
		redisClient: redisClient,
		sender:      sender,
		users:       users,
	}
}

// RequestCode generates a one-time code and delivers it to the phone
// over WhatsApp. Unknown phones return an error without sending.
func (s *Service) RequestCode(ctx context.Context, phone string) error {
	_, ok, err := s.users.LookupByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if !ok {
		return fmt.Errorf("unknown phone number")
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}

	key := fmt.Sprintf("otp:%s", phone)
	if err := s.redisClient.Set(ctx, key, code, otpTTL).Err(); err != nil {
		return fmt.Errorf("storing code: %w", err)
	}

	if err := s.sender.Send(ctx, phone, "קוד הכניסה שלך: "+code); err != nil {
		return fmt.Errorf("sending code: %w", err)
	}
	return nil
}

// VerifyCode checks the one-time code and returns a token pair. The
// code is single use.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) (*TokenPair, error) {
	userID, ok, err := s.users.LookupByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("unknown phone number")
	}

	key := fmt.Sprintf("otp:%s", phone)
	stored, err := s.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired code")
	}
	// A store failure is an infrastructure error, not a wrong code.
	if err != nil {
		return nil, fmt.Errorf("reading code: %w", err)
	}
	if stored != code {
		return nil, fmt.Errorf("invalid or expired code")
	}
	s.redisClient.Del(ctx, key)

	return s.GenerateTokens(ctx, userID, phone)
}

func (s *Service) GenerateTokens(ctx context.Context, userID, phone string) (*TokenPair, error) {
	pair, tokenID, err := s.jwt.GenerateTokenPair(userID, phone)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("refresh:%s:%s", userID, tokenID)
	if err := s.redisClient.Set(ctx, key, "1", s.jwt.RefreshExpiry()).Err(); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return pair, nil
}

func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	key := fmt.Sprintf("refresh:%s:%s", claims.UserID, claims.TokenID)
	exists, err := s.redisClient.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("checking refresh token: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("refresh token revoked")
	}

	// Rotate: revoke the old token before issuing a new pair.
	s.redisClient.Del(ctx, key)

	return s.GenerateTokens(ctx, claims.UserID, "")
}

func (s *Service) Logout(ctx context.Context, userID string) error {
	pattern := fmt.Sprintf("refresh:%s:*", userID)
	iter := s.redisClient.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		s.redisClient.Del(ctx, iter.Val())
	}
	return iter.Err()
}

func (s *Service) ValidateAccessToken(token string) (*AccessClaims, error) {
	return s.jwt.ValidateAccessToken(token)
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpLength, n), nil
}
