package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/service"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
	"github.com/omed-project/omed-api/pkg/response"
)

// DatasetHandler exposes catalog browsing and submission endpoints.
type DatasetHandler struct {
	datasets *service.DatasetService
}

// NewDatasetHandler constructs DatasetHandler.
func NewDatasetHandler(datasets *service.DatasetService) *DatasetHandler {
	return &DatasetHandler{datasets: datasets}
}

// filterParamKeys lists the raw query parameters forwarded to the filter
// compiler. Everything else, including attempts to filter by status, is
// ignored.
var filterParamKeys = []string{
	"search", "specialties", "specialty",
	"min_upvotes", "min_downloads",
	"date_from", "date_to", "sort",
}

func filterParams(c *gin.Context) map[string]string {
	params := make(map[string]string, len(filterParamKeys))
	for _, key := range filterParamKeys {
		if value := c.Query(key); value != "" {
			params[key] = value
		}
	}
	return params
}

// List godoc
// @Summary Browse the dataset catalog
// @Tags Datasets
// @Produce json
// @Param search query string false "Free text search over title, abstract and tags"
// @Param specialties query string false "Comma separated specialty filter"
// @Param specialty query string false "Single specialty filter (legacy)"
// @Param min_upvotes query int false "Minimum upvote count"
// @Param min_downloads query int false "Minimum monthly downloads"
// @Param date_from query string false "Submitted on or after (YYYY-MM-DD)"
// @Param date_to query string false "Submitted on or before (YYYY-MM-DD)"
// @Param sort query string false "newest|oldest|most_upvoted|most_downloaded|alphabetical"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /datasets [get]
func (h *DatasetHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	result, err := h.datasets.Browse(c.Request.Context(), roleFromContext(c), filterParams(c), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Datasets, &result.Pagination)
}

// Get godoc
// @Summary Get dataset detail
// @Tags Datasets
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} response.Envelope
// @Router /datasets/{id} [get]
func (h *DatasetHandler) Get(c *gin.Context) {
	detail, err := h.datasets.Get(c.Request.Context(), roleFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Submit a dataset
// @Tags Datasets
// @Accept json
// @Produce json
// @Param payload body models.SubmitDatasetRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /datasets [post]
func (h *DatasetHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.SubmitDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	dataset, err := h.datasets.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dataset)
}

// MySubmissions godoc
// @Summary List the caller's own submissions
// @Tags Datasets
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /datasets/mine [get]
func (h *DatasetHandler) MySubmissions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	datasets, err := h.datasets.MySubmissions(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, datasets, nil)
}
