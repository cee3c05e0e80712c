package access

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken is returned by Verify for any token that cannot be
// fully trusted: bad signature, wrong signing method, malformed
// structure or expired.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTokenLifetime is the validity period of issued session tokens.
const DefaultTokenLifetime = 7 * 24 * time.Hour

// Identity is the verified identity carried by a session token.
type Identity struct {
	Email string `json:"email"`
}

type identityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, time-limited session tokens.
// Tokens are stateless; there is no revocation list, they die by expiry.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokenService creates a token service with the process-wide signing
// secret. A non-positive lifetime selects DefaultTokenLifetime.
func NewTokenService(secret string, lifetime time.Duration) *TokenService {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &TokenService{secret: []byte(secret), lifetime: lifetime}
}

// Issue signs the identity claims together with an expiry.
func (s *TokenService) Issue(identity Identity) (string, error) {
	now := time.Now()
	claims := identityClaims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature and expiry and returns the embedded identity.
// It never returns claims from a token it could not verify.
func (s *TokenService) Verify(tokenString string) (*Identity, error) {
	claims := identityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &Identity{Email: claims.Email}, nil
}
