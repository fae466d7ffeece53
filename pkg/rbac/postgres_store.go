package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateRole(ctx context.Context, name, guard string) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx,
		`INSERT INTO roles (id, name, guard) VALUES ($1, $2, $3)
		 RETURNING id, name, guard, created_at`,
		uuid.New(), name, guard).Scan(&role.ID, &role.Name, &role.Guard, &role.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, ErrRoleExists
		}
		return Role{}, fmt.Errorf("failed to create role: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) CreatePermission(ctx context.Context, name, guard string) (Permission, error) {
	var perm Permission
	err := s.pool.QueryRow(ctx,
		`INSERT INTO permissions (id, name, guard) VALUES ($1, $2, $3)
		 RETURNING id, name, guard, created_at`,
		uuid.New(), name, guard).Scan(&perm.ID, &perm.Name, &perm.Guard, &perm.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Permission{}, ErrPermissionExists
		}
		return Permission{}, fmt.Errorf("failed to create permission: %w", err)
	}
	return perm, nil
}

func (s *PostgresStore) RoleExists(ctx context.Context, name, guard string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1 AND guard = $2)`,
		name, guard).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) PermissionExists(ctx context.Context, name, guard string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM permissions WHERE name = $1 AND guard = $2)`,
		name, guard).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) AssignRole(ctx context.Context, accountID uuid.UUID, role, guard string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO account_roles (account_id, role_id)
		 SELECT $1, r.id FROM roles r WHERE r.name = $2 AND r.guard = $3
		 ON CONFLICT DO NOTHING`,
		accountID, role, guard)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the role is missing or the membership already exists;
		// distinguish the two.
		exists, err := s.RoleExists(ctx, role, guard)
		if err != nil {
			return err
		}
		if !exists {
			return ErrRoleNotFound
		}
	}
	return nil
}

func (s *PostgresStore) RemoveRole(ctx context.Context, accountID uuid.UUID, role, guard string) error {
	exists, err := s.RoleExists(ctx, role, guard)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRoleNotFound
	}
	_, err = s.pool.Exec(ctx,
		`DELETE FROM account_roles
		 WHERE account_id = $1
		   AND role_id = (SELECT id FROM roles WHERE name = $2 AND guard = $3)`,
		accountID, role, guard)
	if err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}
	return nil
}

func (s *PostgresStore) GrantPermission(ctx context.Context, accountID uuid.UUID, permission, guard string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO account_permissions (account_id, permission_id)
		 SELECT $1, p.id FROM permissions p WHERE p.name = $2 AND p.guard = $3
		 ON CONFLICT DO NOTHING`,
		accountID, permission, guard)
	if err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.PermissionExists(ctx, permission, guard)
		if err != nil {
			return err
		}
		if !exists {
			return ErrPermissionNotFound
		}
	}
	return nil
}

func (s *PostgresStore) RevokePermission(ctx context.Context, accountID uuid.UUID, permission, guard string) error {
	exists, err := s.PermissionExists(ctx, permission, guard)
	if err != nil {
		return err
	}
	if !exists {
		return ErrPermissionNotFound
	}
	_, err = s.pool.Exec(ctx,
		`DELETE FROM account_permissions
		 WHERE account_id = $1
		   AND permission_id = (SELECT id FROM permissions WHERE name = $2 AND guard = $3)`,
		accountID, permission, guard)
	if err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasRole(ctx context.Context, accountID uuid.UUID, role, guard string) (bool, error) {
	var has bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM account_roles ar
			JOIN roles r ON r.id = ar.role_id
			WHERE ar.account_id = $1 AND r.name = $2 AND r.guard = $3)`,
		accountID, role, guard).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("failed to check role membership: %w", err)
	}
	return has, nil
}

func (s *PostgresStore) HasPermission(ctx context.Context, accountID uuid.UUID, permission, guard string) (bool, error) {
	var has bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM account_permissions ap
			JOIN permissions p ON p.id = ap.permission_id
			WHERE ap.account_id = $1 AND p.name = $2 AND p.guard = $3)`,
		accountID, permission, guard).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("failed to check permission membership: %w", err)
	}
	return has, nil
}

func (s *PostgresStore) RolesFor(ctx context.Context, accountID uuid.UUID, guard string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.name FROM account_roles ar
		 JOIN roles r ON r.id = ar.role_id
		 WHERE ar.account_id = $1 AND r.guard = $2
		 ORDER BY r.name`,
		accountID, guard)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return names, nil
}
