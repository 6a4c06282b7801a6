package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"sylo/internal/platform/middleware"
)

// Validator verifies first-party session tokens issued by the external
// identity provider. Tokens are HS256 with the subject carrying the user ID.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

type sessionClaims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies a session token, returning the claims the
// middleware layer cares about.
func (v *Validator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid session token")
	}
	if claims.Subject == "" {
		return nil, errors.New("session token missing subject")
	}

	return &middleware.JWTClaims{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
	}, nil
}
