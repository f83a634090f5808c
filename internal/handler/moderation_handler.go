package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/service"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
	"github.com/omed-project/omed-api/pkg/response"
)

// ModerationHandler exposes the review queue and decision endpoints.
type ModerationHandler struct {
	moderation *service.ModerationService
	metrics    *service.MetricsService
}

// NewModerationHandler constructs ModerationHandler.
func NewModerationHandler(moderation *service.ModerationService, metrics *service.MetricsService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, metrics: metrics}
}

// Queue godoc
// @Summary List pending submissions awaiting review
// @Tags Moderation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /moderation/queue [get]
func (h *ModerationHandler) Queue(c *gin.Context) {
	pending, err := h.moderation.Queue(c.Request.Context(), roleFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// Approve godoc
// @Summary Approve a pending dataset
// @Tags Moderation
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} response.Envelope
// @Router /moderation/datasets/{id}/approve [post]
func (h *ModerationHandler) Approve(c *gin.Context) {
	h.decide(c, models.StatusApproved)
}

// Reject godoc
// @Summary Reject a pending dataset
// @Tags Moderation
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} response.Envelope
// @Router /moderation/datasets/{id}/reject [post]
func (h *ModerationHandler) Reject(c *gin.Context) {
	h.decide(c, models.StatusRejected)
}

func (h *ModerationHandler) decide(c *gin.Context, decision models.DatasetStatus) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dataset, err := h.moderation.Decide(c.Request.Context(), claims.UserID, roleFromContext(c), c.Param("id"), decision)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordDecision(string(decision))
	response.JSON(c, http.StatusOK, dataset, nil)
}
