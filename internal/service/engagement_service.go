package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/policy"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
)

type voteRepository interface {
	Upvote(ctx context.Context, datasetID, userID string) (bool, error)
	RemoveUpvote(ctx context.Context, datasetID, userID string) (bool, error)
	HasUpvoted(ctx context.Context, datasetID, userID string) (bool, error)
	RecordDownload(ctx context.Context, datasetID string, userID *string) error
}

// EngagementService handles upvotes and download tracking. Both act only on
// datasets the caller can see, so counters on hidden rows cannot move.
type EngagementService struct {
	votes    voteRepository
	datasets datasetFinder
	logger   *zap.Logger
}

// NewEngagementService constructs an EngagementService.
func NewEngagementService(votes voteRepository, datasets datasetFinder, logger *zap.Logger) *EngagementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngagementService{votes: votes, datasets: datasets, logger: logger}
}

func (s *EngagementService) visibleDataset(ctx context.Context, role models.Role, datasetID string) error {
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

// Upvote records an upvote for the caller. Repeat upvotes are a no-op
// conflict rather than a counter increment.
func (s *EngagementService) Upvote(ctx context.Context, role models.Role, userID, datasetID string) error {
	if err := s.visibleDataset(ctx, role, datasetID); err != nil {
		return err
	}
	applied, err := s.votes.Upvote(ctx, datasetID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record upvote")
	}
	if !applied {
		return appErrors.Clone(appErrors.ErrConflict, "dataset already upvoted")
	}
	return nil
}

// RemoveUpvote withdraws the caller's upvote.
func (s *EngagementService) RemoveUpvote(ctx context.Context, role models.Role, userID, datasetID string) error {
	if err := s.visibleDataset(ctx, role, datasetID); err != nil {
		return err
	}
	applied, err := s.votes.RemoveUpvote(ctx, datasetID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove upvote")
	}
	if !applied {
		return appErrors.Clone(appErrors.ErrNotFound, "no upvote to remove")
	}
	return nil
}

// HasUpvoted reports whether the caller already upvoted the dataset.
func (s *EngagementService) HasUpvoted(ctx context.Context, role models.Role, userID, datasetID string) (bool, error) {
	if err := s.visibleDataset(ctx, role, datasetID); err != nil {
		return false, err
	}
	voted, err := s.votes.HasUpvoted(ctx, datasetID, userID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check upvote")
	}
	return voted, nil
}

// RecordDownload logs a download event. Anonymous callers pass a nil user.
func (s *EngagementService) RecordDownload(ctx context.Context, role models.Role, userID *string, datasetID string) error {
	if err := s.visibleDataset(ctx, role, datasetID); err != nil {
		return err
	}
	if err := s.votes.RecordDownload(ctx, datasetID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record download")
	}
	return nil
}
