package client

import (
	"context"
	"errors"
	"sync"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

type sessionKey struct {
	system string
}

// Session binds a broker and the credential in use to one inbound request.
type Session struct {
	broker     SessionBroker
	mu         sync.Mutex
	credential string
}

// NewSession creates a request session starting from credential.
func NewSession(broker SessionBroker, credential string) *Session {
	return &Session{broker: broker, credential: credential}
}

// System returns the upstream system the session belongs to.
func (s *Session) System() string {
	return s.broker.System()
}

// Credential returns the credential currently in use.
func (s *Session) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// Refresh replaces stale, the credential a failed call used. When another call
// already replaced it, the current credential is returned as is.
func (s *Session) Refresh(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.credential != stale {
		return s.credential, nil
	}
	s.broker.Invalidate(stale)
	credential, err := s.broker.GetCredential(ctx, "")
	if err != nil {
		return "", err
	}
	s.credential = credential
	return credential, nil
}

// WithSession stores s in ctx under its system tag.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{system: s.System()}, s)
}

// SessionFromContext returns the request session for system.
func SessionFromContext(ctx context.Context, system string) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{system: system}).(*Session)
	return s, ok && s != nil
}

// WithRetryOnAuthFailure runs fn with the session credential. When fn fails
// with an AuthenticationError the credential is refreshed and fn is run again,
// at most maxAttempts more times. Any other error is returned as is.
func WithRetryOnAuthFailure[T any](
	ctx context.Context,
	s *Session,
	maxAttempts int,
	fn func(ctx context.Context, credential string) (T, error),
) (T, error) {
	credential := s.Credential()
	result, err := fn(ctx, credential)
	for attempt := 0; attempt < maxAttempts && errors.Is(err, models.ErrAuthenticationFailed); attempt++ {
		fresh, refreshErr := s.Refresh(ctx, credential)
		if refreshErr != nil {
			var zero T
			return zero, refreshErr
		}
		credential = fresh
		result, err = fn(ctx, credential)
	}
	return result, err
}
