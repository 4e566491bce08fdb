// Package auth validates bearer tokens and resolves the calling user.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role values carried in token claims.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// AuthenticatedUser is the identity resolved from a valid token.
type AuthenticatedUser struct {
	UserID string
	Email  string
	Role   string
}

// IsAdmin reports whether the user may call admin endpoints.
func (u *AuthenticatedUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256-signed bearer tokens.
type Authenticator struct {
	signingKey []byte
}

// NewAuthenticator creates an authenticator with the shared signing key.
func NewAuthenticator(signingKey string) *Authenticator {
	return &Authenticator{signingKey: []byte(signingKey)}
}

// Authenticate parses an Authorization header value and returns the user.
func (a *Authenticator) Authenticate(header string) (*AuthenticatedUser, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, fmt.Errorf("missing bearer token")
	}
	return a.ValidateToken(strings.TrimPrefix(header, "Bearer "))
}

// ValidateToken verifies the token signature and expiry and extracts the
// user identity.
func (a *Authenticator) ValidateToken(tokenString string) (*AuthenticatedUser, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("token missing user_id claim")
	}

	role := c.Role
	if role == "" {
		role = RoleUser
	}
	return &AuthenticatedUser{UserID: c.UserID, Email: c.Email, Role: role}, nil
}

// IssueToken mints a token for the user, used by tests and local tooling.
func (a *Authenticator) IssueToken(userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
