package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// PoolGetter returns the current pool, or nil while the database is down.
type PoolGetter func() *pgxpool.Pool

// PostgresRoleRepository implements RoleRepository for PostgreSQL.
type PostgresRoleRepository struct {
	getPool PoolGetter
}

// NewPostgresRoleRepository creates a repository that always uses the pool the
// getter currently returns, so reconnects are picked up.
func NewPostgresRoleRepository(poolGetter PoolGetter) *PostgresRoleRepository {
	return &PostgresRoleRepository{getPool: poolGetter}
}

func (r *PostgresRoleRepository) GetRoles(ctx context.Context, username string) ([]string, error) {
	pool := r.getPool()
	if pool == nil {
		return nil, ErrDatabaseUnavailable
	}

	rows, err := pool.Query(ctx,
		`SELECT role FROM role_assignments WHERE username = $1 ORDER BY role`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}

	roles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan roles: %w", err)
	}
	return roles, nil
}

func (r *PostgresRoleRepository) SetRoles(ctx context.Context, username string, roles []string) error {
	pool := r.getPool()
	if pool == nil {
		return ErrDatabaseUnavailable
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_assignments WHERE username = $1`, username); err != nil {
			return fmt.Errorf("failed to clear roles: %w", err)
		}
		for _, role := range normalizeRoles(roles) {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_assignments (username, role) VALUES ($1, $2)`, username, role); err != nil {
				return fmt.Errorf("failed to grant role %s: %w", role, err)
			}
		}
		return nil
	})
}

func (r *PostgresRoleRepository) DeleteUser(ctx context.Context, username string) error {
	pool := r.getPool()
	if pool == nil {
		return ErrDatabaseUnavailable
	}

	if _, err := pool.Exec(ctx, `DELETE FROM role_assignments WHERE username = $1`, username); err != nil {
		return fmt.Errorf("failed to delete roles: %w", err)
	}
	return nil
}

func (r *PostgresRoleRepository) ListAssignments(ctx context.Context) ([]models.RoleAssignment, error) {
	pool := r.getPool()
	if pool == nil {
		return nil, ErrDatabaseUnavailable
	}

	rows, err := pool.Query(ctx,
		`SELECT username, role FROM role_assignments ORDER BY username, role`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	pairs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([2]string, error) {
		var pair [2]string
		err := row.Scan(&pair[0], &pair[1])
		return pair, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan roles: %w", err)
	}
	return groupAssignments(pairs), nil
}
