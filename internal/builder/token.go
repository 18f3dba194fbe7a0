// Package builder issues and exchanges the tokens that guard the trip
// builder. An invite URL carries a single-use initial token; exchanging
// it mints a short-lived session token tied to a server-side session row.
package builder

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the token_type claim.
const (
	TokenTypeInitial = "initial"
	TokenTypeSession = "session"
)

// Claims is the payload of both builder token kinds. Initial tokens
// leave SessionToken empty; session tokens carry the random secret that
// must match the session row.
type Claims struct {
	jwt.RegisteredClaims
	BrandID      string   `json:"brand_id"`
	UserID       string   `json:"user_id,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	SessionID    string   `json:"session_id,omitempty"`
	TokenType    string   `json:"token_type,omitempty"`
	SessionToken string   `json:"session_token,omitempty"`
}

// Signer signs and verifies builder tokens with a shared HMAC secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

func (s *Signer) WithClock(now func() time.Time) *Signer {
	if now != nil {
		s.now = now
	}
	return s
}

// Sign issues an HS256 token for the claims with the given lifetime.
func (s *Signer) Sign(claims Claims, ttl time.Duration) (string, error) {
	now := s.now().UTC()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("builder: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and checks its signature and expiry. Any parse
// or signature problem comes back as ErrInvalidSignature; the caller
// cannot distinguish a forged token from a malformed one.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !token.Valid {
		return nil, ErrInvalidSignature
	}
	if claims.BrandID == "" {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}
