package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/omed-project/omed-api/internal/models"
)

func rbacContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/moderation/queue", nil)
	return c, rec
}

func TestRequireRoleRejectsAnonymous(t *testing.T) {
	c, rec := rbacContext(t)

	RequireRole(models.RoleModerator)(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, c.IsAborted())
}

func TestRequireRoleRejectsInsufficientRole(t *testing.T) {
	c, rec := rbacContext(t)
	c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1"})
	c.Set(ContextRoleKey, models.RoleUser)

	RequireRole(models.RoleModerator)(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, c.IsAborted())
}

func TestRequireRolePassesEqualAndHigherRoles(t *testing.T) {
	for _, role := range []models.Role{models.RoleModerator, models.RoleAdmin, models.RoleSuperAdmin} {
		c, _ := rbacContext(t)
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1"})
		c.Set(ContextRoleKey, role)

		RequireRole(models.RoleModerator)(c)

		assert.False(t, c.IsAborted(), "role %s should pass", role)
	}
}

func TestRequireRoleDefaultsMissingRoleToUser(t *testing.T) {
	// Authenticated but the role middleware never ran. The caller must be
	// treated as a plain user, not granted anything wider.
	c, rec := rbacContext(t)
	c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1"})

	RequireRole(models.RoleModerator)(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoleFromContextDefaultsToUser(t *testing.T) {
	c, _ := rbacContext(t)

	assert.Equal(t, models.RoleUser, RoleFromContext(c))

	c.Set(ContextRoleKey, "not-a-role-type")
	assert.Equal(t, models.RoleUser, RoleFromContext(c))
}
