// Package repository defines the role assignment store and its PostgreSQL and
// MySQL implementations.
package repository

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// ErrDatabaseUnavailable is returned while the backing connection is down.
var ErrDatabaseUnavailable = errors.New("database connection not available")

// RoleRepository persists role assignments. A user with no rows has no
// explicit assignment; callers decide the default.
type RoleRepository interface {
	// GetRoles returns the roles of username sorted by name, or an empty slice.
	GetRoles(ctx context.Context, username string) ([]string, error)

	// SetRoles replaces every role of username. An empty roles slice removes
	// the user.
	SetRoles(ctx context.Context, username string, roles []string) error

	// DeleteUser removes every role of username.
	DeleteUser(ctx context.Context, username string) error

	// ListAssignments returns every assignment ordered by username.
	ListAssignments(ctx context.Context) ([]models.RoleAssignment, error)
}

// normalizeRoles upper-cases, trims, de-duplicates and sorts roles.
func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r != "" {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// groupAssignments folds (username, role) rows that arrive ordered by username.
func groupAssignments(rows [][2]string) []models.RoleAssignment {
	assignments := make([]models.RoleAssignment, 0)
	for _, row := range rows {
		n := len(assignments)
		if n > 0 && assignments[n-1].User == row[0] {
			assignments[n-1].Roles = append(assignments[n-1].Roles, row[1])
			continue
		}
		assignments = append(assignments, models.RoleAssignment{User: row[0], Roles: []string{row[1]}})
	}
	return assignments
}

// isConnectionError separates availability failures from query errors.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"bad connection",
		"broken pipe",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
