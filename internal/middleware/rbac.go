package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/service"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
	"github.com/omed-project/omed-api/pkg/response"
)

// ContextRoleKey is the gin context key storing the resolved role.
const ContextRoleKey = "currentRole"

// ResolveRole looks up the caller's effective role from the roles store and
// attaches it to the context. Tokens never carry a role, so a grant change is
// honoured on the very next request. Anonymous callers resolve to user.
func ResolveRole(roles *service.RoleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.RoleUser
		if claimsValue, exists := c.Get(ContextUserKey); exists {
			if claims, ok := claimsValue.(*models.JWTClaims); ok {
				resolved, err := roles.RoleOf(c.Request.Context(), claims.UserID)
				if err == nil {
					role = resolved
				}
			}
		}
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireRole blocks callers whose resolved role ranks below min.
func RequireRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserKey); !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		role := RoleFromContext(c)
		if !role.AtLeast(min) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RoleFromContext returns the resolved role, defaulting to user.
func RoleFromContext(c *gin.Context) models.Role {
	if value, exists := c.Get(ContextRoleKey); exists {
		if role, ok := value.(models.Role); ok {
			return role
		}
	}
	return models.RoleUser
}
