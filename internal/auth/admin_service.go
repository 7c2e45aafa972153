// Package auth provides SSO sign-in, role-based route protection and the
// administrative operations behind the admin routes.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/cache"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// AdminService defines the interface for administrative operations.
type AdminService interface {
	// CacheStats describes the response cache.
	CacheStats(ctx context.Context) (*models.CacheStats, error)

	// ClearCache drops every cached upstream response.
	ClearCache(ctx context.Context) (*models.CacheClearResponse, error)

	// InvalidateCredential drops the shared credential of one upstream system so
	// the next request logs in again.
	InvalidateCredential(ctx context.Context, system string) (*models.CredentialInvalidation, error)

	// LookupRoles resolves the roles of a user the way the gate would.
	LookupRoles(ctx context.Context, username string) (*models.RoleLookup, error)
}

// adminService implements the AdminService interface.
type adminService struct {
	store   cache.Store
	ttl     time.Duration
	roles   RoleDirectory
	brokers map[string]client.SessionBroker
	logger  *logrus.Logger
}

// NewAdminService creates a new admin service instance with the provided dependencies.
func NewAdminService(
	store cache.Store,
	ttl time.Duration,
	roles RoleDirectory,
	logger *logrus.Logger,
	brokers ...client.SessionBroker,
) AdminService {
	bySystem := make(map[string]client.SessionBroker, len(brokers))
	for _, b := range brokers {
		bySystem[strings.ToLower(b.System())] = b
	}
	return &adminService{
		store:   store,
		ttl:     ttl,
		roles:   roles,
		brokers: bySystem,
		logger:  logger,
	}
}

func (s *adminService) CacheStats(ctx context.Context) (*models.CacheStats, error) {
	stats := &models.CacheStats{Backend: "none", Entries: -1, TTL: int(s.ttl.Seconds())}

	switch store := s.store.(type) {
	case *cache.MemoryStore:
		stats.Backend = "memory"
		stats.Entries = store.Len()
	case *cache.RedisStore:
		stats.Backend = "redis"
		if err := store.Ping(ctx); err != nil {
			s.logger.WithError(err).Error("Failed to reach cache backend")
			return nil, err
		}
	}

	return stats, nil
}

func (s *adminService) ClearCache(ctx context.Context) (*models.CacheClearResponse, error) {
	if s.store == nil {
		return &models.CacheClearResponse{Message: "Response cache is disabled"}, nil
	}

	s.logger.Warn("Clearing response cache")

	count, err := s.store.Clear(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to clear response cache")
		return nil, err
	}

	s.logger.WithField("entries_cleared", count).Info("Response cache cleared successfully")

	return &models.CacheClearResponse{
		Cleared: count,
		Message: fmt.Sprintf("Successfully cleared %d cached responses", count),
	}, nil
}

func (s *adminService) InvalidateCredential(_ context.Context, system string) (*models.CredentialInvalidation, error) {
	broker, ok := s.brokers[strings.ToLower(system)]
	if !ok {
		return nil, models.NewNotFoundError(fmt.Sprintf("unknown upstream system %q", system))
	}

	broker.Invalidate("")
	s.logger.WithField("system", broker.System()).Info("Upstream credential invalidated by admin")

	return &models.CredentialInvalidation{System: broker.System(), Invalidated: true}, nil
}

func (s *adminService) LookupRoles(ctx context.Context, username string) (*models.RoleLookup, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewValidationError("user", "is required")
	}

	roles, err := s.roles.Roles(ctx, username)
	if err != nil {
		s.logger.WithError(err).WithField("user", username).Error("Failed to resolve roles")
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}

	return &models.RoleLookup{User: username, Roles: roles}, nil
}
