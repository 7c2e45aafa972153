package repository

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/auth"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/cache"
)

const roleShape = "roles"

// RoleDirectory resolves roles from a database with the policy file as the
// fallback:
//   - a user with rows in the store gets exactly those roles
//   - a user without rows gets the policy assignment or the default roles
//   - while the store is unreachable every lookup uses the policy
//
// Lookups are cached only when a loader is given.
type RoleDirectory struct {
	repo     RoleRepository
	fallback auth.RoleDirectory
	loader   *cache.Loader
	logger   *logrus.Logger
}

// NewRoleDirectory creates a database-backed directory. repo and loader may be nil.
func NewRoleDirectory(repo RoleRepository, fallback auth.RoleDirectory, loader *cache.Loader, logger *logrus.Logger) *RoleDirectory {
	return &RoleDirectory{
		repo:     repo,
		fallback: fallback,
		loader:   loader,
		logger:   logger,
	}
}

// Roles implements auth.RoleDirectory.
func (d *RoleDirectory) Roles(ctx context.Context, username string) ([]string, error) {
	if d.repo == nil {
		return d.fallback.Roles(ctx, username)
	}

	roles, err := cache.Fetch(ctx, d.loader, cache.Key(roleShape, username), func(ctx context.Context) ([]string, error) {
		return d.repo.GetRoles(ctx, username)
	})
	if err != nil {
		if !isConnectionError(err) {
			return nil, err
		}
		d.logger.WithError(err).WithField("user", username).Warn("Role store unavailable, using policy roles")
		return d.fallback.Roles(ctx, username)
	}

	if len(roles) == 0 {
		return d.fallback.Roles(ctx, username)
	}
	return roles, nil
}
