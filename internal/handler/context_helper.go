package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/omed-project/omed-api/internal/middleware"
	"github.com/omed-project/omed-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func roleFromContext(c *gin.Context) models.Role {
	return middleware.RoleFromContext(c)
}
