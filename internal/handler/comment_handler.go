package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omed-project/omed-api/internal/service"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
	"github.com/omed-project/omed-api/pkg/response"
)

// CommentHandler exposes dataset discussion endpoints.
type CommentHandler struct {
	comments *service.CommentService
}

// NewCommentHandler constructs CommentHandler.
func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type createCommentRequest struct {
	Content string `json:"content"`
}

// List godoc
// @Summary List comments on a dataset
// @Tags Comments
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} response.Envelope
// @Router /datasets/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	comments, err := h.comments.List(c.Request.Context(), roleFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}

// Create godoc
// @Summary Comment on a dataset
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Dataset ID"
// @Param payload body createCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Router /datasets/{id}/comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), roleFromContext(c), claims.UserID, c.Param("id"), req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// Delete godoc
// @Summary Delete a comment
// @Tags Comments
// @Param id path string true "Dataset ID"
// @Param commentId path string true "Comment ID"
// @Success 204 "No Content"
// @Router /datasets/{id}/comments/{commentId} [delete]
func (h *CommentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.comments.Delete(c.Request.Context(), roleFromContext(c), claims.UserID, c.Param("commentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
