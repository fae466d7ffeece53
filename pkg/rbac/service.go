package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ErrInvalidGuard indicates a guard outside the configured allow-list. The
// guard is validated before the store is touched, so a bad guard never
// causes a mutation.
var ErrInvalidGuard = errors.New("invalid guard")

// Service evaluates and mutates role and permission membership. All
// operations are scoped by guard; the guard must be on the configured
// allow-list.
type Service struct {
	store  Store
	guards map[string]struct{}
}

func NewService(store Store, guards []string) *Service {
	allowed := make(map[string]struct{}, len(guards))
	for _, g := range guards {
		allowed[g] = struct{}{}
	}
	return &Service{store: store, guards: allowed}
}

func (s *Service) checkGuard(guard string) error {
	if _, ok := s.guards[guard]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidGuard, guard)
	}
	return nil
}

// Guards returns the configured guard allow-list.
func (s *Service) Guards() []string {
	names := make([]string, 0, len(s.guards))
	for g := range s.guards {
		names = append(names, g)
	}
	return names
}

func (s *Service) CreateRole(ctx context.Context, name, guard string) (Role, error) {
	if err := s.checkGuard(guard); err != nil {
		return Role{}, err
	}
	role, err := s.store.CreateRole(ctx, name, guard)
	if err != nil {
		return Role{}, err
	}
	slog.Info("Role created", "role", name, "guard", guard)
	return role, nil
}

func (s *Service) CreatePermission(ctx context.Context, name, guard string) (Permission, error) {
	if err := s.checkGuard(guard); err != nil {
		return Permission{}, err
	}
	perm, err := s.store.CreatePermission(ctx, name, guard)
	if err != nil {
		return Permission{}, err
	}
	slog.Info("Permission created", "permission", name, "guard", guard)
	return perm, nil
}

// AssignRole adds the account to the role under the guard. Assigning a role
// that does not exist fails; it is never created implicitly.
func (s *Service) AssignRole(ctx context.Context, accountID uuid.UUID, role, guard string) error {
	if err := s.checkGuard(guard); err != nil {
		return err
	}
	if err := s.store.AssignRole(ctx, accountID, role, guard); err != nil {
		return err
	}
	slog.Info("Role assigned", "accountId", accountID, "role", role, "guard", guard)
	return nil
}

func (s *Service) RemoveRole(ctx context.Context, accountID uuid.UUID, role, guard string) error {
	if err := s.checkGuard(guard); err != nil {
		return err
	}
	if err := s.store.RemoveRole(ctx, accountID, role, guard); err != nil {
		return err
	}
	slog.Info("Role removed", "accountId", accountID, "role", role, "guard", guard)
	return nil
}

func (s *Service) GrantPermission(ctx context.Context, accountID uuid.UUID, permission, guard string) error {
	if err := s.checkGuard(guard); err != nil {
		return err
	}
	if err := s.store.GrantPermission(ctx, accountID, permission, guard); err != nil {
		return err
	}
	slog.Info("Permission granted", "accountId", accountID, "permission", permission, "guard", guard)
	return nil
}

func (s *Service) RevokePermission(ctx context.Context, accountID uuid.UUID, permission, guard string) error {
	if err := s.checkGuard(guard); err != nil {
		return err
	}
	if err := s.store.RevokePermission(ctx, accountID, permission, guard); err != nil {
		return err
	}
	slog.Info("Permission revoked", "accountId", accountID, "permission", permission, "guard", guard)
	return nil
}

func (s *Service) HasRole(ctx context.Context, accountID uuid.UUID, role, guard string) (bool, error) {
	if err := s.checkGuard(guard); err != nil {
		return false, err
	}
	return s.store.HasRole(ctx, accountID, role, guard)
}

func (s *Service) HasPermission(ctx context.Context, accountID uuid.UUID, permission, guard string) (bool, error) {
	if err := s.checkGuard(guard); err != nil {
		return false, err
	}
	return s.store.HasPermission(ctx, accountID, permission, guard)
}

func (s *Service) RolesFor(ctx context.Context, accountID uuid.UUID, guard string) ([]string, error) {
	if err := s.checkGuard(guard); err != nil {
		return nil, err
	}
	return s.store.RolesFor(ctx, accountID, guard)
}
