package rbac

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type scopedName struct {
	name  string
	guard string
}

type membership struct {
	accountID uuid.UUID
	name      string
	guard     string
}

// InMemoryStore is a map-backed Store for tests and local development.
type InMemoryStore struct {
	mu          sync.RWMutex
	roles       map[scopedName]Role
	permissions map[scopedName]Permission
	roleMembers map[membership]struct{}
	permMembers map[membership]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		roles:       make(map[scopedName]Role),
		permissions: make(map[scopedName]Permission),
		roleMembers: make(map[membership]struct{}),
		permMembers: make(map[membership]struct{}),
	}
}

func (s *InMemoryStore) CreateRole(_ context.Context, name, guard string) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopedName{name, guard}
	if _, ok := s.roles[key]; ok {
		return Role{}, ErrRoleExists
	}
	role := Role{ID: uuid.New(), Name: name, Guard: guard, CreatedAt: time.Now().UTC()}
	s.roles[key] = role
	return role, nil
}

func (s *InMemoryStore) CreatePermission(_ context.Context, name, guard string) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopedName{name, guard}
	if _, ok := s.permissions[key]; ok {
		return Permission{}, ErrPermissionExists
	}
	perm := Permission{ID: uuid.New(), Name: name, Guard: guard, CreatedAt: time.Now().UTC()}
	s.permissions[key] = perm
	return perm, nil
}

func (s *InMemoryStore) RoleExists(_ context.Context, name, guard string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[scopedName{name, guard}]
	return ok, nil
}

func (s *InMemoryStore) PermissionExists(_ context.Context, name, guard string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.permissions[scopedName{name, guard}]
	return ok, nil
}

func (s *InMemoryStore) AssignRole(_ context.Context, accountID uuid.UUID, role, guard string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[scopedName{role, guard}]; !ok {
		return ErrRoleNotFound
	}
	s.roleMembers[membership{accountID, role, guard}] = struct{}{}
	return nil
}

func (s *InMemoryStore) RemoveRole(_ context.Context, accountID uuid.UUID, role, guard string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[scopedName{role, guard}]; !ok {
		return ErrRoleNotFound
	}
	delete(s.roleMembers, membership{accountID, role, guard})
	return nil
}

func (s *InMemoryStore) GrantPermission(_ context.Context, accountID uuid.UUID, permission, guard string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.permissions[scopedName{permission, guard}]; !ok {
		return ErrPermissionNotFound
	}
	s.permMembers[membership{accountID, permission, guard}] = struct{}{}
	return nil
}

func (s *InMemoryStore) RevokePermission(_ context.Context, accountID uuid.UUID, permission, guard string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.permissions[scopedName{permission, guard}]; !ok {
		return ErrPermissionNotFound
	}
	delete(s.permMembers, membership{accountID, permission, guard})
	return nil
}

func (s *InMemoryStore) HasRole(_ context.Context, accountID uuid.UUID, role, guard string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roleMembers[membership{accountID, role, guard}]
	return ok, nil
}

func (s *InMemoryStore) HasPermission(_ context.Context, accountID uuid.UUID, permission, guard string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.permMembers[membership{accountID, permission, guard}]
	return ok, nil
}

func (s *InMemoryStore) RolesFor(_ context.Context, accountID uuid.UUID, guard string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for m := range s.roleMembers {
		if m.accountID == accountID && m.guard == guard {
			names = append(names, m.name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// MembershipCount reports the total number of role and permission
// memberships, for asserting the absence of side effects in tests.
func (s *InMemoryStore) MembershipCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.roleMembers) + len(s.permMembers)
}
