package rbac

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRbacFixture(t *testing.T) (*Service, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	service := NewService(store, []string{"web", "api"})
	return service, store
}

func TestInvalidGuard(t *testing.T) {
	ctx := context.Background()
	service, store := newRbacFixture(t)
	accountID := uuid.New()

	_, err := service.CreateRole(ctx, "admin", "web")
	require.NoError(t, err)

	before := store.MembershipCount()

	assert.ErrorIs(t, service.AssignRole(ctx, accountID, "admin", "cli"), ErrInvalidGuard)
	assert.ErrorIs(t, service.RemoveRole(ctx, accountID, "admin", "cli"), ErrInvalidGuard)
	assert.ErrorIs(t, service.GrantPermission(ctx, accountID, "edit", "cli"), ErrInvalidGuard)
	assert.ErrorIs(t, service.RevokePermission(ctx, accountID, "edit", "cli"), ErrInvalidGuard)
	_, err = service.HasRole(ctx, accountID, "admin", "cli")
	assert.ErrorIs(t, err, ErrInvalidGuard)
	_, err = service.CreateRole(ctx, "admin", "cli")
	assert.ErrorIs(t, err, ErrInvalidGuard)

	// A rejected guard never mutates the store.
	assert.Equal(t, before, store.MembershipCount())
}

func TestAssignNonexistentRole(t *testing.T) {
	ctx := context.Background()
	service, store := newRbacFixture(t)
	accountID := uuid.New()

	before := store.MembershipCount()
	assert.ErrorIs(t, service.AssignRole(ctx, accountID, "ghost", "web"), ErrRoleNotFound)
	assert.ErrorIs(t, service.GrantPermission(ctx, accountID, "ghost", "web"), ErrPermissionNotFound)
	assert.Equal(t, before, store.MembershipCount())
}

func TestRoleMembership(t *testing.T) {
	ctx := context.Background()
	service, _ := newRbacFixture(t)
	accountID := uuid.New()

	_, err := service.CreateRole(ctx, "admin", "api")
	require.NoError(t, err)
	require.NoError(t, service.AssignRole(ctx, accountID, "admin", "api"))

	has, err := service.HasRole(ctx, accountID, "admin", "api")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, service.RemoveRole(ctx, accountID, "admin", "api"))
	has, err = service.HasRole(ctx, accountID, "admin", "api")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGuardsAreIndependentNamespaces(t *testing.T) {
	ctx := context.Background()
	service, _ := newRbacFixture(t)
	accountID := uuid.New()

	_, err := service.CreateRole(ctx, "admin", "api")
	require.NoError(t, err)
	require.NoError(t, service.AssignRole(ctx, accountID, "admin", "api"))

	// admin under api does not exist, let alone apply, under web.
	has, err := service.HasRole(ctx, accountID, "admin", "web")
	require.NoError(t, err)
	assert.False(t, has)
	assert.ErrorIs(t, service.AssignRole(ctx, accountID, "admin", "web"), ErrRoleNotFound)

	// The same name can be created independently under the other guard.
	_, err = service.CreateRole(ctx, "admin", "web")
	require.NoError(t, err)
}

func TestDirectPermissions(t *testing.T) {
	ctx := context.Background()
	service, _ := newRbacFixture(t)
	accountID := uuid.New()

	_, err := service.CreatePermission(ctx, "articles.edit", "web")
	require.NoError(t, err)
	require.NoError(t, service.GrantPermission(ctx, accountID, "articles.edit", "web"))

	has, err := service.HasPermission(ctx, accountID, "articles.edit", "web")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, service.RevokePermission(ctx, accountID, "articles.edit", "web"))
	has, err = service.HasPermission(ctx, accountID, "articles.edit", "web")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDuplicateCreation(t *testing.T) {
	ctx := context.Background()
	service, _ := newRbacFixture(t)

	_, err := service.CreateRole(ctx, "editor", "web")
	require.NoError(t, err)
	_, err = service.CreateRole(ctx, "editor", "web")
	assert.ErrorIs(t, err, ErrRoleExists)

	_, err = service.CreatePermission(ctx, "articles.edit", "web")
	require.NoError(t, err)
	_, err = service.CreatePermission(ctx, "articles.edit", "web")
	assert.ErrorIs(t, err, ErrPermissionExists)
}

func TestRolesFor(t *testing.T) {
	ctx := context.Background()
	service, _ := newRbacFixture(t)
	accountID := uuid.New()

	for _, name := range []string{"editor", "admin"} {
		_, err := service.CreateRole(ctx, name, "web")
		require.NoError(t, err)
		require.NoError(t, service.AssignRole(ctx, accountID, name, "web"))
	}

	roles, err := service.RolesFor(ctx, accountID, "web")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "editor"}, roles)
}
