package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/omed-project/omed-api/internal/models"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindPublicProfile(ctx context.Context, id string) (*models.PublicProfile, error)
	UpdateProfile(ctx context.Context, user *models.User) error
}

// UpdateProfileRequest carries the editable researcher profile fields.
type UpdateProfileRequest struct {
	Name          *string `json:"name"`
	Affiliation   *string `json:"affiliation"`
	ORCID         *string `json:"orcid"`
	LinkedIn      *string `json:"linkedin" validate:"omitempty,url"`
	GitHub        *string `json:"github" validate:"omitempty,url"`
	GoogleScholar *string `json:"google_scholar" validate:"omitempty,url"`
	AvatarType    *string `json:"avatar_type" validate:"omitempty,oneof=initials url"`
	AvatarValue   *string `json:"avatar_value"`
}

// ProfileService serves researcher profiles.
type ProfileService struct {
	repo      profileRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo profileRepository, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProfileService{repo: repo, validator: validate, logger: logger}
}

// PublicProfile returns the public view of a researcher's profile.
func (s *ProfileService) PublicProfile(ctx context.Context, userID string) (*models.PublicProfile, error) {
	profile, err := s.repo.FindPublicProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

// Me returns the caller's full account record.
func (s *ProfileService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return user, nil
}

// Update applies partial edits to the caller's profile.
func (s *ProfileService) Update(ctx context.Context, userID string, req UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if req.Name != nil {
		user.Name = req.Name
	}
	if req.Affiliation != nil {
		user.Affiliation = req.Affiliation
	}
	if req.ORCID != nil {
		user.ORCID = req.ORCID
	}
	if req.LinkedIn != nil {
		user.LinkedIn = req.LinkedIn
	}
	if req.GitHub != nil {
		user.GitHub = req.GitHub
	}
	if req.GoogleScholar != nil {
		user.GoogleScholar = req.GoogleScholar
	}
	if req.AvatarType != nil {
		user.AvatarType = *req.AvatarType
	}
	if req.AvatarValue != nil {
		user.AvatarValue = req.AvatarValue
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return user, nil
}
