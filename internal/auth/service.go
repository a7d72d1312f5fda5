// Package auth validates the service tokens that gate the admin
// endpoints. Tokens are HMAC-signed JWTs issued out of band.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blocknews/blocknews/internal/config"
)

type Service struct {
	secret []byte
	issuer string
}

func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
	}
}

// IssueServiceToken signs a token for the named caller. Used by ops
// tooling and tests; the server itself only validates.
func (s *Service) IssueServiceToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iss": s.issuer,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	return signed, nil
}

// ValidateServiceToken checks the signature, issuer and expiry, and
// returns the token's subject.
func (s *Service) ValidateServiceToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", &AuthError{Code: "invalid_token", Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token claims"}
	}

	if iss, _ := claims["iss"].(string); iss != s.issuer {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token issuer"}
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token subject"}
	}

	return subject, nil
}

// AuthError is a structured authentication failure.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
