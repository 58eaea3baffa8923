package auth

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope limits what a local API bearer token may do.
type Scope string

const (
	// ScopeRead allows reading appliance state and history.
	ScopeRead Scope = "read"

	// ScopeControl additionally allows issuing appliance commands.
	ScopeControl Scope = "control"
)

// defaultAccessTTL applies when a non-positive TTL is requested.
const defaultAccessTTL = 15 * time.Minute

// Claims are the JWT claims of a local API bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []Scope `json:"scopes"`
}

// Allows reports whether the token carries scope. Control implies read.
func (c *Claims) Allows(scope Scope) bool {
	if slices.Contains(c.Scopes, scope) {
		return true
	}
	return scope == ScopeRead && slices.Contains(c.Scopes, ScopeControl)
}

// GenerateAccessToken creates a signed HS256 token for subject.
func GenerateAccessToken(subject string, scopes []Scope, secret string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scopes: scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseToken validates signature, expiry and required claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if len(claims.Scopes) == 0 {
		return nil, fmt.Errorf("%w: missing scopes", ErrTokenInvalid)
	}

	return claims, nil
}
