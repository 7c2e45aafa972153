// Package token signs and verifies the session cookie value. The cookie holds
// only the SSO username; roles are never embedded and are looked up on every
// protected request.
//
// Security Considerations:
//   - Values are HS256-signed JWTs; any other algorithm is rejected
//   - Expiry, issuer and subject are enforced during verification
//   - Each session carries a random token id so two logins never share a value
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidSession is returned for any session value that fails verification.
var ErrInvalidSession = errors.New("invalid session")

// SessionType is the value of the type claim of session tokens.
const SessionType = "session"

// Signer issues and verifies session values.
type Signer interface {
	// Sign returns a signed session value for username.
	Sign(username string) (string, error)
	// Verify returns the username of a valid session value.
	Verify(value string) (string, error)
	// MaxAge is the session lifetime.
	MaxAge() time.Duration
}

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims

	// Type distinguishes session tokens from any other token signed with the
	// same secret.
	Type string `json:"type"`
}

// SessionSigner implements Signer with HS256 JWTs.
type SessionSigner struct {
	secret []byte
	issuer string
	maxAge time.Duration
	now    func() time.Time
}

// NewSessionSigner creates a signer. now may be nil.
func NewSessionSigner(secret, issuer string, maxAge time.Duration, now func() time.Time) *SessionSigner {
	if now == nil {
		now = time.Now
	}
	return &SessionSigner{secret: []byte(secret), issuer: issuer, maxAge: maxAge, now: now}
}

// Sign returns a signed session value for username.
func (s *SessionSigner) Sign(username string) (string, error) {
	if username == "" {
		return "", errors.New("session username must not be empty")
	}

	now := s.now()
	claims := Claims{
		Type: SessionType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// Verify returns the username of a valid session value.
func (s *SessionSigner) Verify(value string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	if claims.Type != SessionType {
		return "", fmt.Errorf("%w: unexpected token type %q", ErrInvalidSession, claims.Type)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}
	return claims.Subject, nil
}

// MaxAge is the session lifetime.
func (s *SessionSigner) MaxAge() time.Duration {
	return s.maxAge
}
