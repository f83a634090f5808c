package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/omed-project/omed-api/internal/models"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
)

type roleRepository interface {
	RoleOf(ctx context.Context, userID string) (models.Role, error)
	Assign(ctx context.Context, userID string, role models.Role) error
	Revoke(ctx context.Context, userID string) error
	ListAssignments(ctx context.Context) ([]models.RoleAssignment, error)
}

type roleCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type roleAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RoleService resolves effective roles and manages grants. Lookups run on
// every authenticated request, so results are cached briefly; a grant change
// invalidates the cache and takes effect within one TTL at worst.
type RoleService struct {
	repo   roleRepository
	cache  roleCache
	audit  roleAuditWriter
	logger *zap.Logger
	ttl    time.Duration
}

// NewRoleService constructs a RoleService.
func NewRoleService(repo roleRepository, cache roleCache, audit roleAuditWriter, logger *zap.Logger, ttl time.Duration) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RoleService{repo: repo, cache: cache, audit: audit, logger: logger, ttl: ttl}
}

func roleCacheKey(userID string) string {
	return fmt.Sprintf("roles:user:%s", userID)
}

// RoleOf returns the effective role for a user, defaulting to the base user
// role when no grant exists.
func (s *RoleService) RoleOf(ctx context.Context, userID string) (models.Role, error) {
	if userID == "" {
		return models.RoleUser, nil
	}

	if s.cache != nil {
		var cached models.Role
		if err := s.cache.Get(ctx, roleCacheKey(userID), &cached); err == nil && cached.Valid() {
			return cached, nil
		}
	}

	role, err := s.repo.RoleOf(ctx, userID)
	if err != nil {
		// A broken lookup must never widen permissions.
		s.logger.Warn("role lookup failed, treating as user", zap.String("user_id", userID), zap.Error(err))
		return models.RoleUser, nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, roleCacheKey(userID), role, s.ttl); err != nil {
			s.logger.Warn("failed to cache role", zap.Error(err))
		}
	}
	return role, nil
}

// Assign grants a role to a user. Admins may grant up to moderator; only a
// superadmin may grant admin or superadmin. Nobody changes their own role.
func (s *RoleService) Assign(ctx context.Context, actorID string, actorRole models.Role, userID string, role models.Role) error {
	if !role.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if !actorRole.AtLeast(models.RoleAdmin) {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	if actorID == userID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot change own role")
	}
	if role.AtLeast(models.RoleAdmin) && actorRole != models.RoleSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "superadmin role required to grant admin roles")
	}

	current, err := s.repo.RoleOf(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current role")
	}
	if current.AtLeast(models.RoleAdmin) && actorRole != models.RoleSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "superadmin role required to change admin roles")
	}

	if role == models.RoleUser {
		err = s.repo.Revoke(ctx, userID)
	} else {
		err = s.repo.Assign(ctx, userID, role)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, roleCacheKey(userID)); err != nil {
			s.logger.Warn("failed to invalidate role cache", zap.Error(err))
		}
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionRoleChange,
			Resource:   "roles",
			ResourceID: &userID,
			OldValues:  []byte(fmt.Sprintf(`{"role":%q}`, current)),
			NewValues:  []byte(fmt.Sprintf(`{"role":%q}`, role)),
		}); err != nil {
			s.logger.Warn("failed to record role change audit log", zap.Error(err))
		}
	}

	return nil
}

// ListAssignments returns every explicit role grant. Admin only.
func (s *RoleService) ListAssignments(ctx context.Context, actorRole models.Role) ([]models.RoleAssignment, error) {
	if !actorRole.AtLeast(models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	assignments, err := s.repo.ListAssignments(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list role assignments")
	}
	return assignments, nil
}
