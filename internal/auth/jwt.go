package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "shotaf"

// TokenPair is what a successful OTP verification hands back to the
// dashboard.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AccessClaims ride on every dashboard request. Phone is carried so
// handlers can address the user's WhatsApp without a store lookup.
type AccessClaims struct {
	UserID string `json:"uid"`
	Phone  string `json:"phone"`
	jwt.RegisteredClaims
}

// RefreshClaims carry a per-issue token id; rotation revokes by id.
type RefreshClaims struct {
	UserID  string `json:"uid"`
	TokenID string `json:"tid"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates HS256 token pairs with separate
// secrets for the access and refresh lifetimes.
type JWTManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func NewJWTManager(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) *JWTManager {
	return &JWTManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

func registered(now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
	}
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// GenerateTokenPair issues a fresh access+refresh pair. The returned
// tokenID identifies the refresh token for the Redis revocation entry.
func (m *JWTManager) GenerateTokenPair(userID, phone string) (*TokenPair, string, error) {
	now := time.Now()

	accessStr, err := sign(AccessClaims{
		UserID:           userID,
		Phone:            phone,
		RegisteredClaims: registered(now, m.accessExpiry),
	}, m.accessSecret)
	if err != nil {
		return nil, "", fmt.Errorf("signing access token: %w", err)
	}

	tokenID := uuid.New().String()
	refreshStr, err := sign(RefreshClaims{
		UserID:           userID,
		TokenID:          tokenID,
		RegisteredClaims: registered(now, m.refreshExpiry),
	}, m.refreshSecret)
	if err != nil {
		return nil, "", fmt.Errorf("signing refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessStr,
		RefreshToken: refreshStr,
		ExpiresIn:    int64(m.accessExpiry.Seconds()),
	}, tokenID, nil
}

// RefreshExpiry is the TTL the service puts on stored refresh entries.
func (m *JWTManager) RefreshExpiry() time.Duration {
	return m.refreshExpiry
}

func parseWith(tokenStr string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("token invalid")
	}
	return nil
}

func (m *JWTManager) ValidateAccessToken(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := parseWith(tokenStr, &claims, m.accessSecret); err != nil {
		return nil, fmt.Errorf("validating access token: %w", err)
	}
	return &claims, nil
}

func (m *JWTManager) ValidateRefreshToken(tokenStr string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := parseWith(tokenStr, &claims, m.refreshSecret); err != nil {
		return nil, fmt.Errorf("validating refresh token: %w", err)
	}
	return &claims, nil
}
