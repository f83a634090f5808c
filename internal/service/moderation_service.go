package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/policy"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
)

type moderationRepository interface {
	FindByID(ctx context.Context, id string) (*models.DatasetDetail, error)
	ListPending(ctx context.Context) ([]models.DatasetDetail, error)
	UpdateStatus(ctx context.Context, id string, expected, next models.DatasetStatus, decidedBy string, decidedAt time.Time) (bool, error)
}

type moderationAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type browseInvalidator interface {
	InvalidateBrowseCache(ctx context.Context)
}

// ModerationService runs the pending -> approved/rejected state machine.
type ModerationService struct {
	repo    moderationRepository
	audit   moderationAuditWriter
	catalog browseInvalidator
	logger  *zap.Logger
}

// NewModerationService constructs a ModerationService.
func NewModerationService(repo moderationRepository, audit moderationAuditWriter, catalog browseInvalidator, logger *zap.Logger) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModerationService{repo: repo, audit: audit, catalog: catalog, logger: logger}
}

// Queue returns pending submissions awaiting review, oldest first.
func (s *ModerationService) Queue(ctx context.Context, role models.Role) ([]models.DatasetDetail, error) {
	if !policy.CanModerate(role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "moderator role required")
	}
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending datasets")
	}
	if pending == nil {
		pending = []models.DatasetDetail{}
	}
	return pending, nil
}

// Decide applies a moderation decision to a pending dataset. The store update
// is guarded on the dataset still being pending, so a decision that raced and
// lost comes back as AlreadyDecided, not as a silent overwrite. The deciding
// actor and time are recorded for rejections the same as for approvals.
func (s *ModerationService) Decide(ctx context.Context, actorID string, role models.Role, datasetID string, decision models.DatasetStatus) (*models.DatasetDetail, error) {
	if err := policy.DecisionTarget(decision); err != nil {
		return nil, err
	}

	dataset, err := s.repo.FindByID(ctx, datasetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}

	if err := policy.AuthorizeTransition(role, dataset.Status); err != nil {
		return nil, err
	}

	decidedAt := time.Now().UTC()
	applied, err := s.repo.UpdateStatus(ctx, datasetID, models.StatusPending, decision, actorID, decidedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply decision")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrAlreadyDecided, "")
	}

	action := models.AuditActionApprove
	if decision == models.StatusRejected {
		action = models.AuditActionReject
	}
	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     action,
			Resource:   "datasets",
			ResourceID: &datasetID,
			OldValues:  []byte(fmt.Sprintf(`{"status":%q}`, models.StatusPending)),
			NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, decision)),
		}); err != nil {
			s.logger.Warn("failed to record moderation audit log", zap.Error(err))
		}
	}

	if s.catalog != nil {
		s.catalog.InvalidateBrowseCache(ctx)
	}

	dataset.Status = decision
	dataset.ApprovedBy = &actorID
	dataset.ApprovedAt = &decidedAt
	dataset.UpdatedAt = decidedAt

	s.logger.Info("moderation decision applied",
		zap.String("dataset_id", datasetID),
		zap.String("decision", string(decision)),
		zap.String("decided_by", actorID))

	return dataset, nil
}
