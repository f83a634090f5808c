package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omed-project/omed-api/internal/models"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
)

type mockRoleRepo struct {
	roles     map[string]models.Role
	roleErr   error
	assigned  map[string]models.Role
	revoked   []string
	assignErr error
}

func (m *mockRoleRepo) RoleOf(ctx context.Context, userID string) (models.Role, error) {
	if m.roleErr != nil {
		return models.RoleUser, m.roleErr
	}
	if role, ok := m.roles[userID]; ok {
		return role, nil
	}
	return models.RoleUser, nil
}

func (m *mockRoleRepo) Assign(ctx context.Context, userID string, role models.Role) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	if m.assigned == nil {
		m.assigned = map[string]models.Role{}
	}
	m.assigned[userID] = role
	return nil
}

func (m *mockRoleRepo) Revoke(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *mockRoleRepo) ListAssignments(ctx context.Context) ([]models.RoleAssignment, error) {
	return nil, nil
}

type mockRoleCache struct {
	values  map[string]models.Role
	deleted []string
}

func (m *mockRoleCache) Get(ctx context.Context, key string, dest interface{}) error {
	if role, ok := m.values[key]; ok {
		if out, ok := dest.(*models.Role); ok {
			*out = role
			return nil
		}
	}
	return appErrors.ErrCacheMiss
}

func (m *mockRoleCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.values == nil {
		m.values = map[string]models.Role{}
	}
	if role, ok := value.(models.Role); ok {
		m.values[key] = role
	}
	return nil
}

func (m *mockRoleCache) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.values, key)
	return nil
}

func TestRoleOfDefaultsToUser(t *testing.T) {
	svc := NewRoleService(&mockRoleRepo{}, nil, nil, nil, time.Minute)

	role, err := svc.RoleOf(context.Background(), "unknown-user")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)
}

func TestRoleOfAnonymousIsUser(t *testing.T) {
	svc := NewRoleService(&mockRoleRepo{}, nil, nil, nil, time.Minute)

	role, err := svc.RoleOf(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)
}

func TestRoleOfLookupFailureNeverWidens(t *testing.T) {
	repo := &mockRoleRepo{roleErr: errors.New("db down"), roles: map[string]models.Role{"u1": models.RoleAdmin}}
	svc := NewRoleService(repo, nil, nil, nil, time.Minute)

	role, err := svc.RoleOf(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)
}

func TestRoleOfUsesCache(t *testing.T) {
	repo := &mockRoleRepo{roles: map[string]models.Role{"u1": models.RoleModerator}}
	cache := &mockRoleCache{}
	svc := NewRoleService(repo, cache, nil, nil, time.Minute)

	role, err := svc.RoleOf(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, role)

	// The grant disappears but the cached value still answers until the TTL.
	repo.roles = nil
	role, err = svc.RoleOf(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, role)
}

func TestAssignRequiresAdmin(t *testing.T) {
	svc := NewRoleService(&mockRoleRepo{}, nil, nil, nil, time.Minute)

	err := svc.Assign(context.Background(), "actor", models.RoleModerator, "u1", models.RoleModerator)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAssignAdminRolesRequiresSuperadmin(t *testing.T) {
	svc := NewRoleService(&mockRoleRepo{}, nil, nil, nil, time.Minute)

	for _, role := range []models.Role{models.RoleAdmin, models.RoleSuperAdmin} {
		err := svc.Assign(context.Background(), "actor", models.RoleAdmin, "u1", role)
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code, "granting %q", role)
	}
}

func TestAssignOwnRoleForbidden(t *testing.T) {
	svc := NewRoleService(&mockRoleRepo{}, nil, nil, nil, time.Minute)

	err := svc.Assign(context.Background(), "actor", models.RoleSuperAdmin, "actor", models.RoleAdmin)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAssignGrantsAndInvalidatesCache(t *testing.T) {
	repo := &mockRoleRepo{}
	cache := &mockRoleCache{values: map[string]models.Role{roleCacheKey("u1"): models.RoleUser}}
	audit := &mockAudit{}
	svc := NewRoleService(repo, cache, audit, nil, time.Minute)

	require.NoError(t, svc.Assign(context.Background(), "actor", models.RoleAdmin, "u1", models.RoleModerator))

	assert.Equal(t, models.RoleModerator, repo.assigned["u1"])
	assert.Contains(t, cache.deleted, roleCacheKey("u1"))
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionRoleChange, audit.entries[0].Action)
}

func TestAssignUserRoleRevokesGrant(t *testing.T) {
	repo := &mockRoleRepo{roles: map[string]models.Role{"u1": models.RoleModerator}}
	svc := NewRoleService(repo, nil, nil, nil, time.Minute)

	require.NoError(t, svc.Assign(context.Background(), "actor", models.RoleAdmin, "u1", models.RoleUser))
	assert.Contains(t, repo.revoked, "u1")
}

func TestAssignUnknownRole(t *testing.T) {
	svc := NewRoleService(&mockRoleRepo{}, nil, nil, nil, time.Minute)

	err := svc.Assign(context.Background(), "actor", models.RoleSuperAdmin, "u1", models.Role("editor"))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
