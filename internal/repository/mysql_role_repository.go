package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// DBGetter returns the current connection, or nil while the database is down.
type DBGetter func() *sql.DB

// MySQLRoleRepository implements RoleRepository for MySQL.
type MySQLRoleRepository struct {
	getDB DBGetter
}

// NewMySQLRoleRepository creates a repository that always uses the connection
// the getter currently returns, so reconnects are picked up.
func NewMySQLRoleRepository(dbGetter DBGetter) *MySQLRoleRepository {
	return &MySQLRoleRepository{getDB: dbGetter}
}

func (r *MySQLRoleRepository) GetRoles(ctx context.Context, username string) ([]string, error) {
	db := r.getDB()
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	rows, err := db.QueryContext(ctx,
		`SELECT role FROM role_assignments WHERE username = ? ORDER BY role`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	roles := make([]string, 0)
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}
	return roles, nil
}

func (r *MySQLRoleRepository) SetRoles(ctx context.Context, username string, roles []string) (err error) {
	db := r.getDB()
	if db == nil {
		return ErrDatabaseUnavailable
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM role_assignments WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to clear roles: %w", err)
	}
	for _, role := range normalizeRoles(roles) {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO role_assignments (username, role) VALUES (?, ?)`, username, role); err != nil {
			return fmt.Errorf("failed to grant role %s: %w", role, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit roles: %w", err)
	}
	return nil
}

func (r *MySQLRoleRepository) DeleteUser(ctx context.Context, username string) error {
	db := r.getDB()
	if db == nil {
		return ErrDatabaseUnavailable
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM role_assignments WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to delete roles: %w", err)
	}
	return nil
}

func (r *MySQLRoleRepository) ListAssignments(ctx context.Context) ([]models.RoleAssignment, error) {
	db := r.getDB()
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	rows, err := db.QueryContext(ctx,
		`SELECT username, role FROM role_assignments ORDER BY username, role`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var pair [2]string
		if err := rows.Scan(&pair[0], &pair[1]); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}
	return groupAssignments(pairs), nil
}
