package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every client-facing token failure; callers
// never learn whether parsing, signature or expiry failed.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carried by gateway access tokens.
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// Verifier validates tokens against a shared HMAC secret. A nil
// Verifier means auth is disabled and every token passes.
type Verifier struct {
	secret []byte
}

// NewVerifier returns nil when no secret is configured, which turns
// token checks into no-ops.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{secret: []byte(secret)}
}

// ValidateToken parses and verifies an access token.
func (v *Verifier) ValidateToken(tokenString string) (*Claims, error) {
	if v == nil {
		return &Claims{}, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueToken mints a signed access token for a client id.
func (v *Verifier) IssueToken(clientID string, ttl time.Duration) (string, error) {
	if v == nil {
		return "", errors.New("auth disabled: no secret configured")
	}

	now := time.Now()
	claims := &Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   clientID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
