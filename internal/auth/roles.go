package auth

import (
	"context"
	"slices"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
)

// RoleDirectory resolves the roles of an SSO user. Implementations must be
// consulted on every protected request; roles are never stored in the session.
type RoleDirectory interface {
	Roles(ctx context.Context, username string) ([]string, error)
}

// StaticRoleDirectory serves roles from the policy file.
type StaticRoleDirectory struct {
	assignments map[string][]string
	defaults    []string
}

// NewStaticRoleDirectory copies the assignments out of policy.
func NewStaticRoleDirectory(policy config.RolePolicy) *StaticRoleDirectory {
	assignments := make(map[string][]string, len(policy.Assignments))
	for user, roles := range policy.Assignments {
		assignments[user] = slices.Clone(roles)
	}
	return &StaticRoleDirectory{
		assignments: assignments,
		defaults:    slices.Clone(policy.DefaultRoles),
	}
}

// Roles returns the explicit assignment for username or the default roles.
func (d *StaticRoleDirectory) Roles(_ context.Context, username string) ([]string, error) {
	if roles, ok := d.assignments[username]; ok {
		return slices.Clone(roles), nil
	}
	return slices.Clone(d.defaults), nil
}

// HasAnyRole reports whether have and allowed intersect.
func HasAnyRole(have, allowed []string) bool {
	for _, r := range have {
		if slices.Contains(allowed, r) {
			return true
		}
	}
	return false
}
