package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/policy"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
)

type commentRepository interface {
	ListByDataset(ctx context.Context, datasetID string) ([]models.CommentDetail, error)
	Create(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, id string) (*models.Comment, error)
	Delete(ctx context.Context, id string) error
}

type datasetFinder interface {
	FindByID(ctx context.Context, id string) (*models.DatasetDetail, error)
}

const maxCommentLength = 4000

// CommentService manages discussion threads under dataset pages. Thread
// visibility follows the dataset's own visibility.
type CommentService struct {
	repo     commentRepository
	datasets datasetFinder
	logger   *zap.Logger
}

// NewCommentService constructs a CommentService.
func NewCommentService(repo commentRepository, datasets datasetFinder, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{repo: repo, datasets: datasets, logger: logger}
}

func (s *CommentService) visibleDataset(ctx context.Context, role models.Role, datasetID string) error {
	dataset, err := s.datasets.FindByID(ctx, datasetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}
	if !policy.CanView(role, dataset.Status) {
		return appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
	}
	return nil
}

// List returns the comment thread for a visible dataset.
func (s *CommentService) List(ctx context.Context, role models.Role, datasetID string) ([]models.CommentDetail, error) {
	if err := s.visibleDataset(ctx, role, datasetID); err != nil {
		return nil, err
	}
	comments, err := s.repo.ListByDataset(ctx, datasetID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	if comments == nil {
		comments = []models.CommentDetail{}
	}
	return comments, nil
}

// Create posts a comment on a visible dataset.
func (s *CommentService) Create(ctx context.Context, role models.Role, userID, datasetID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment cannot be empty")
	}
	if len(content) > maxCommentLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment is too long")
	}

	if err := s.visibleDataset(ctx, role, datasetID); err != nil {
		return nil, err
	}

	comment := &models.Comment{DatasetID: datasetID, UserID: userID, Content: content}
	if err := s.repo.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}
	return comment, nil
}

// Delete removes a comment. Allowed for the author and for moderators.
func (s *CommentService) Delete(ctx context.Context, role models.Role, userID, commentID string) error {
	comment, err := s.repo.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}

	if comment.UserID != userID && !policy.CanModerate(role) {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete another user's comment")
	}

	if err := s.repo.Delete(ctx, commentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comment")
	}
	return nil
}
