package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrRoleNotFound indicates an assignment named a role that does not
	// exist under the given guard.
	ErrRoleNotFound = errors.New("role not found")
	// ErrPermissionNotFound indicates an assignment named a permission that
	// does not exist under the given guard.
	ErrPermissionNotFound = errors.New("permission not found")
	// ErrRoleExists indicates a role with that (name, guard) already exists.
	ErrRoleExists = errors.New("role already exists")
	// ErrPermissionExists indicates a permission with that (name, guard)
	// already exists.
	ErrPermissionExists = errors.New("permission already exists")
)

// Store is the consumed interface over the authorization store. Every lookup
// and mutation is scoped by guard; guards are independent namespaces and
// implementations must never match across them.
type Store interface {
	CreateRole(ctx context.Context, name, guard string) (Role, error)
	CreatePermission(ctx context.Context, name, guard string) (Permission, error)
	// RoleExists reports whether the role exists under the guard.
	RoleExists(ctx context.Context, name, guard string) (bool, error)
	PermissionExists(ctx context.Context, name, guard string) (bool, error)

	AssignRole(ctx context.Context, accountID uuid.UUID, role, guard string) error
	RemoveRole(ctx context.Context, accountID uuid.UUID, role, guard string) error
	GrantPermission(ctx context.Context, accountID uuid.UUID, permission, guard string) error
	RevokePermission(ctx context.Context, accountID uuid.UUID, permission, guard string) error

	HasRole(ctx context.Context, accountID uuid.UUID, role, guard string) (bool, error)
	// HasPermission reports direct permission membership only; it does not
	// traverse role-attached permissions.
	HasPermission(ctx context.Context, accountID uuid.UUID, permission, guard string) (bool, error)
	// RolesFor lists the role names the account holds under the guard.
	RolesFor(ctx context.Context, accountID uuid.UUID, guard string) ([]string, error)
}
