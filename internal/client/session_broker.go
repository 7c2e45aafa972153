package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// Authenticator obtains and checks credentials for one upstream system.
type Authenticator interface {
	// Login derives a fresh credential.
	Login(ctx context.Context) (string, error)
	// Validate reports whether a credential is still accepted. It never fails;
	// any error counts as invalid.
	Validate(ctx context.Context, credential string) bool
}

// SessionBroker hands out a valid upstream credential per request.
type SessionBroker interface {
	// GetCredential returns supplied when it validates, otherwise the shared
	// credential, logging in when there is none. It never returns "" without
	// an error.
	GetCredential(ctx context.Context, supplied string) (string, error)
	// Invalidate drops the shared credential if it still equals stale.
	Invalidate(stale string)
	// System returns the upstream system tag.
	System() string
}

// RefreshObserver receives one sample per login attempt.
type RefreshObserver interface {
	ObserveCredentialRefresh(system string, success bool)
}

// sessionBroker is the concrete implementation of SessionBroker. It keeps one
// credential per process and refreshes it through a single flight so that
// concurrent misses trigger one login.
type sessionBroker struct {
	mu         sync.RWMutex
	system     string
	auth       Authenticator
	logger     *logrus.Logger
	observer   RefreshObserver
	group      singleflight.Group
	credential string
}

// NewSessionBroker creates a broker for one upstream system. observer may be nil.
func NewSessionBroker(
	system string,
	auth Authenticator,
	logger *logrus.Logger,
	observer RefreshObserver,
) SessionBroker {
	return &sessionBroker{
		system:   system,
		auth:     auth,
		logger:   logger,
		observer: observer,
	}
}

func (b *sessionBroker) System() string {
	return b.system
}

func (b *sessionBroker) GetCredential(ctx context.Context, supplied string) (string, error) {
	if supplied != "" {
		if b.auth.Validate(ctx, supplied) {
			b.mu.Lock()
			if b.credential == "" {
				b.credential = supplied
			}
			b.mu.Unlock()
			return supplied, nil
		}
		b.logger.WithFields(logrus.Fields{
			"system":     b.system,
			"credential": Mask(supplied),
		}).Debug("Supplied credential rejected")
	}

	b.mu.RLock()
	current := b.credential
	b.mu.RUnlock()

	if current != "" && current != supplied {
		return current, nil
	}

	return b.refresh(ctx, current)
}

// refresh logs in unless another caller already replaced stale.
func (b *sessionBroker) refresh(ctx context.Context, stale string) (string, error) {
	res, err, _ := b.group.Do("login", func() (interface{}, error) {
		b.mu.RLock()
		current := b.credential
		b.mu.RUnlock()
		if current != "" && current != stale {
			return current, nil
		}

		traceID := uuid.NewString()
		log := b.logger.WithFields(logrus.Fields{
			"system":   b.system,
			"trace_id": traceID,
		})
		log.Debug("Refreshing upstream credential")

		// Detached so one caller's cancellation does not fail the others.
		credential, err := b.auth.Login(context.WithoutCancel(ctx))
		if err == nil && credential == "" {
			err = errors.New("login returned an empty credential")
		}
		b.observeRefresh(err == nil)
		if err != nil {
			log.WithError(err).Warn("Upstream login failed")
			if errors.Is(err, models.ErrAuthenticationFailed) {
				return "", err
			}
			return "", fmt.Errorf("%w: %v",
				models.NewAuthenticationError(b.system+" login failed"), err)
		}

		b.mu.Lock()
		b.credential = credential
		b.mu.Unlock()

		log.WithField("credential", Mask(credential)).Info("Upstream credential refreshed")
		return credential, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (b *sessionBroker) Invalidate(stale string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if stale == "" || b.credential == stale {
		b.credential = ""
		b.logger.WithField("system", b.system).Debug("Credential invalidated, will refresh on next request")
	}
}

func (b *sessionBroker) observeRefresh(success bool) {
	if b.observer != nil {
		b.observer.ObserveCredentialRefresh(b.system, success)
	}
}

// Mask keeps the first four characters of a credential for logging.
func Mask(credential string) string {
	const visible = 4
	if len(credential) <= visible {
		return "****"
	}
	return credential[:visible] + "****"
}
