package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/service"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
	"github.com/omed-project/omed-api/pkg/response"
)

// AdminHandler exposes role administration endpoints.
type AdminHandler struct {
	roles *service.RoleService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(roles *service.RoleService) *AdminHandler {
	return &AdminHandler{roles: roles}
}

type assignRoleRequest struct {
	Role models.Role `json:"role"`
}

// ListRoles godoc
// @Summary List explicit role grants
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/roles [get]
func (h *AdminHandler) ListRoles(c *gin.Context) {
	assignments, err := h.roles.ListAssignments(c.Request.Context(), roleFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if assignments == nil {
		assignments = []models.RoleAssignment{}
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// GetRole godoc
// @Summary Get a user's effective role
// @Tags Admin
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/roles/{userId} [get]
func (h *AdminHandler) GetRole(c *gin.Context) {
	role, err := h.roles.RoleOf(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"user_id": c.Param("userId"), "role": role}, nil)
}

// AssignRole godoc
// @Summary Grant or change a user's role
// @Tags Admin
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param payload body assignRoleRequest true "Role payload"
// @Success 204 "No Content"
// @Router /admin/roles/{userId} [put]
func (h *AdminHandler) AssignRole(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req assignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.roles.Assign(c.Request.Context(), claims.UserID, roleFromContext(c), c.Param("userId"), req.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
