// Package auth checks API credentials: the shared API key sent as X-API-Key,
// or an HS256 bearer token issued with IssueToken.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// APIKeyHeader carries the shared API key.
const APIKeyHeader = "X-API-Key"

var (
	// ErrMissingCredentials is returned when the request carries neither an API key nor a token.
	ErrMissingCredentials = errors.New("api key or bearer token required")

	// ErrInvalidCredentials is returned when the credentials do not check out.
	ErrInvalidCredentials = errors.New("invalid api key or token")
)

// Method names reported by Verifier.Check.
const (
	MethodAPIKey = "api_key"
	MethodBearer = "bearer"
)

// Verifier checks request credentials. A zero-value field disables that
// scheme; with both empty every request is rejected.
type Verifier struct {
	APIKey    string
	JWTSecret string
}

// Check returns the authenticated subject and the scheme that accepted it.
func (v Verifier) Check(r *http.Request) (subject, method string, err error) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		if v.APIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(v.APIKey)) != 1 {
			return "", MethodAPIKey, ErrInvalidCredentials
		}
		return "api-key", MethodAPIKey, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "", ErrMissingCredentials
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", MethodBearer, ErrInvalidCredentials
	}
	if v.JWTSecret == "" {
		return "", MethodBearer, ErrInvalidCredentials
	}

	sub, err := ParseToken(v.JWTSecret, parts[1])
	if err != nil {
		return "", MethodBearer, ErrInvalidCredentials
	}
	return sub, MethodBearer, nil
}

// IssueToken creates a signed JWT for subject valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a signed JWT and returns its subject.
func ParseToken(secret, tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("parse token: invalid token")
	}
	return claims.Subject, nil
}
