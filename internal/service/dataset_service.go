package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/policy"
	"github.com/omed-project/omed-api/internal/query"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
)

type datasetRepository interface {
	List(ctx context.Context, spec query.Spec, approvedOnly bool, page, size int) ([]models.Dataset, int, error)
	FindByID(ctx context.Context, id string) (*models.DatasetDetail, error)
	Create(ctx context.Context, dataset *models.Dataset) error
	ListBySubmitter(ctx context.Context, userID string) ([]models.Dataset, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type submissionAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// BrowseResult is a cacheable page of catalog results.
type BrowseResult struct {
	Datasets   []models.Dataset  `json:"datasets"`
	Pagination models.Pagination `json:"pagination"`
}

// DatasetConfig tunes listing behaviour.
type DatasetConfig struct {
	CacheTTL        time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

// DatasetService implements catalog browsing, detail lookup and submission.
type DatasetService struct {
	repo      datasetRepository
	cache     catalogCache
	audit     submissionAuditWriter
	validator *validator.Validate
	logger    *zap.Logger
	config    DatasetConfig
}

// NewDatasetService constructs a DatasetService.
func NewDatasetService(repo datasetRepository, cache catalogCache, audit submissionAuditWriter, validate *validator.Validate, logger *zap.Logger, config DatasetConfig) *DatasetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = 24
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = 100
	}
	return &DatasetService{repo: repo, cache: cache, audit: audit, validator: validate, logger: logger, config: config}
}

// Browse compiles the raw filter parameters and lists matching datasets. For
// every role below superadmin the result is restricted to approved rows; the
// restriction is decided here, never by anything in params.
func (s *DatasetService) Browse(ctx context.Context, role models.Role, params map[string]string, page, size int) (*BrowseResult, error) {
	spec := query.Compile(params)
	approvedOnly := !policy.CanSeeAllStatuses(role)

	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = s.config.DefaultPageSize
	}
	if size > s.config.MaxPageSize {
		size = s.config.MaxPageSize
	}

	// Only the public approved view is cached; the superadmin view bypasses
	// the cache so moderation outcomes show up immediately.
	cacheKey := browseCacheKey(spec, page, size)
	if approvedOnly && s.cache != nil {
		var cached BrowseResult
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	datasets, total, err := s.repo.List(ctx, spec, approvedOnly, page, size)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list datasets")
	}
	if datasets == nil {
		datasets = []models.Dataset{}
	}

	result := &BrowseResult{
		Datasets:   datasets,
		Pagination: models.Pagination{Page: page, PageSize: size, TotalCount: total},
	}

	if approvedOnly && s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache browse result", zap.Error(err))
		}
	}
	return result, nil
}

// Get returns a single dataset. Rows the role may not view surface as
// NotFound so the response does not confirm the record exists.
func (s *DatasetService) Get(ctx context.Context, role models.Role, id string) (*models.DatasetDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}

	if !policy.CanView(role, detail.Status) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
	}
	return detail, nil
}

// Submit creates a new pending submission owned by the caller.
func (s *DatasetService) Submit(ctx context.Context, userID string, req models.SubmitDatasetRequest) (*models.Dataset, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if !models.KnownSpecialty(req.Specialty) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown specialty")
	}

	tags := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}

	dataset := &models.Dataset{
		Title:         strings.TrimSpace(req.Title),
		Abstract:      strings.TrimSpace(req.Abstract),
		DOI:           req.DOI,
		Tags:          tags,
		Specialty:     req.Specialty,
		DatasetLink:   req.DatasetLink,
		CoverImageURL: req.CoverImageURL,
		SampleData:    req.SampleData,
		CaseSize:      req.CaseSize,
		SubmittedBy:   userID,
	}

	if err := s.repo.Create(ctx, dataset); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &userID,
			Action:     models.AuditActionSubmit,
			Resource:   "datasets",
			ResourceID: &dataset.ID,
			NewValues:  []byte(fmt.Sprintf(`{"title":%q}`, dataset.Title)),
		}); err != nil {
			s.logger.Warn("failed to record submission audit log", zap.Error(err))
		}
	}

	return dataset, nil
}

// MySubmissions returns the caller's own submissions across all statuses.
// Ownership grants visibility here, unlike the public detail path.
func (s *DatasetService) MySubmissions(ctx context.Context, userID string) ([]models.Dataset, error) {
	datasets, err := s.repo.ListBySubmitter(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	if datasets == nil {
		datasets = []models.Dataset{}
	}
	return datasets, nil
}

// InvalidateBrowseCache drops every cached catalog page. Called after any
// moderation decision so approved rows appear without waiting out the TTL.
func (s *DatasetService) InvalidateBrowseCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "catalog:browse:*"); err != nil {
		s.logger.Warn("failed to invalidate browse cache", zap.Error(err))
	}
}

func browseCacheKey(spec query.Spec, page, size int) string {
	parts := []string{
		"search=" + spec.Search,
		"specialties=" + strings.Join(append([]string(nil), spec.Specialties...), ","),
		"sort=" + string(spec.Sort),
		"page=" + strconv.Itoa(page),
		"size=" + strconv.Itoa(size),
	}
	if spec.MinUpvotes != nil {
		parts = append(parts, "min_upvotes="+strconv.Itoa(*spec.MinUpvotes))
	}
	if spec.MinDownloads != nil {
		parts = append(parts, "min_downloads="+strconv.Itoa(*spec.MinDownloads))
	}
	if spec.DateFrom != nil {
		parts = append(parts, "from="+spec.DateFrom.Format(time.RFC3339))
	}
	if spec.DateTo != nil {
		parts = append(parts, "to="+spec.DateTo.Format(time.RFC3339))
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(strings.Join(parts, "&")))
	return "catalog:browse:" + hex.EncodeToString(sum[:16])
}
