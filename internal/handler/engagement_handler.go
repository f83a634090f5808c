package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omed-project/omed-api/internal/service"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
	"github.com/omed-project/omed-api/pkg/response"
)

// EngagementHandler exposes upvote and download tracking endpoints.
type EngagementHandler struct {
	engagement *service.EngagementService
}

// NewEngagementHandler constructs EngagementHandler.
func NewEngagementHandler(engagement *service.EngagementService) *EngagementHandler {
	return &EngagementHandler{engagement: engagement}
}

// Upvote godoc
// @Summary Upvote a dataset
// @Tags Engagement
// @Param id path string true "Dataset ID"
// @Success 204 "No Content"
// @Router /datasets/{id}/upvote [post]
func (h *EngagementHandler) Upvote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.engagement.Upvote(c.Request.Context(), roleFromContext(c), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveUpvote godoc
// @Summary Withdraw an upvote
// @Tags Engagement
// @Param id path string true "Dataset ID"
// @Success 204 "No Content"
// @Router /datasets/{id}/upvote [delete]
func (h *EngagementHandler) RemoveUpvote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.engagement.RemoveUpvote(c.Request.Context(), roleFromContext(c), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// HasUpvoted godoc
// @Summary Check whether the caller upvoted a dataset
// @Tags Engagement
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} response.Envelope
// @Router /datasets/{id}/upvote [get]
func (h *EngagementHandler) HasUpvoted(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	voted, err := h.engagement.HasUpvoted(c.Request.Context(), roleFromContext(c), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"upvoted": voted}, nil)
}

// RecordDownload godoc
// @Summary Record a dataset download
// @Tags Engagement
// @Param id path string true "Dataset ID"
// @Success 204 "No Content"
// @Router /datasets/{id}/download [post]
func (h *EngagementHandler) RecordDownload(c *gin.Context) {
	var userID *string
	if claims := claimsFromContext(c); claims != nil {
		userID = &claims.UserID
	}

	if err := h.engagement.RecordDownload(c.Request.Context(), roleFromContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
