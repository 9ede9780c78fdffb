// Package auth verifies bearer tokens issued by the identity provider.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretBytes HS256 共享密钥的最小长度
const MinSecretBytes = 32

var (
	ErrEmptyToken    = errors.New("token is empty")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("JWT_SECRET is required")
)

// Claims 身份提供方签发的令牌声明，Subject 为外部用户ID
type Claims struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates and (for tooling and tests) issues HS256 tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	raw := strings.TrimSpace(secret)
	if raw == "" {
		return nil, ErrMissingSecret
	}
	if len(raw) < MinSecretBytes {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d characters", MinSecretBytes)
	}
	return &Verifier{secret: []byte(raw)}, nil
}

// Parse validates the token and returns its claims. The subject must be present.
func (v *Verifier) Parse(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrEmptyToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Issue signs a token for subject valid for ttl.
func (v *Verifier) Issue(subject, name string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	now := time.Now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
