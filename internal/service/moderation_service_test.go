package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omed-project/omed-api/internal/models"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
)

type mockModerationRepo struct {
	detail    *models.DatasetDetail
	detailErr error

	updateApplied bool
	updateErr     error
	updateCalled  bool
	gotExpected   models.DatasetStatus
	gotNext       models.DatasetStatus
	gotDecidedBy  string
	gotDecidedAt  time.Time

	pending []models.DatasetDetail
}

func (m *mockModerationRepo) FindByID(ctx context.Context, id string) (*models.DatasetDetail, error) {
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	return m.detail, nil
}

func (m *mockModerationRepo) ListPending(ctx context.Context) ([]models.DatasetDetail, error) {
	return m.pending, nil
}

func (m *mockModerationRepo) UpdateStatus(ctx context.Context, id string, expected, next models.DatasetStatus, decidedBy string, decidedAt time.Time) (bool, error) {
	m.updateCalled = true
	m.gotExpected = expected
	m.gotNext = next
	m.gotDecidedBy = decidedBy
	m.gotDecidedAt = decidedAt
	return m.updateApplied, m.updateErr
}

type mockInvalidator struct {
	invalidated bool
}

func (m *mockInvalidator) InvalidateBrowseCache(ctx context.Context) {
	m.invalidated = true
}

func pendingDetail() *models.DatasetDetail {
	return &models.DatasetDetail{Dataset: models.Dataset{ID: "ds-1", Status: models.StatusPending}}
}

func TestDecideApprove(t *testing.T) {
	repo := &mockModerationRepo{detail: pendingDetail(), updateApplied: true}
	audit := &mockAudit{}
	cache := &mockInvalidator{}
	svc := NewModerationService(repo, audit, cache, nil)

	decided, err := svc.Decide(context.Background(), "mod-1", models.RoleModerator, "ds-1", models.StatusApproved)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, repo.gotExpected)
	assert.Equal(t, models.StatusApproved, repo.gotNext)
	assert.Equal(t, "mod-1", repo.gotDecidedBy)

	assert.Equal(t, models.StatusApproved, decided.Status)
	require.NotNil(t, decided.ApprovedBy)
	assert.Equal(t, "mod-1", *decided.ApprovedBy)
	require.NotNil(t, decided.ApprovedAt)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionApprove, audit.entries[0].Action)
	assert.True(t, cache.invalidated)
}

func TestDecideRejectRecordsActorAndTime(t *testing.T) {
	repo := &mockModerationRepo{detail: pendingDetail(), updateApplied: true}
	svc := NewModerationService(repo, nil, nil, nil)

	decided, err := svc.Decide(context.Background(), "mod-2", models.RoleAdmin, "ds-1", models.StatusRejected)
	require.NoError(t, err)

	// A rejection carries the deciding actor and time exactly like an approval.
	assert.Equal(t, models.StatusRejected, decided.Status)
	require.NotNil(t, decided.ApprovedBy)
	assert.Equal(t, "mod-2", *decided.ApprovedBy)
	require.NotNil(t, decided.ApprovedAt)
	assert.Equal(t, repo.gotDecidedAt, *decided.ApprovedAt)
}

func TestDecideForbiddenForPlainUsers(t *testing.T) {
	repo := &mockModerationRepo{detail: pendingDetail()}
	svc := NewModerationService(repo, nil, nil, nil)

	_, err := svc.Decide(context.Background(), "user-1", models.RoleUser, "ds-1", models.StatusApproved)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// The dataset must be left untouched on a role failure.
	assert.False(t, repo.updateCalled)
}

func TestDecideAlreadyDecidedDataset(t *testing.T) {
	for _, status := range []models.DatasetStatus{models.StatusApproved, models.StatusRejected} {
		repo := &mockModerationRepo{detail: &models.DatasetDetail{Dataset: models.Dataset{ID: "ds-1", Status: status}}}
		svc := NewModerationService(repo, nil, nil, nil)

		_, err := svc.Decide(context.Background(), "mod-1", models.RoleModerator, "ds-1", models.StatusApproved)
		require.Error(t, err)

		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrAlreadyDecided.Code, appErr.Code)
		assert.False(t, repo.updateCalled)
	}
}

func TestDecideLostRaceIsAlreadyDecided(t *testing.T) {
	// The record was pending when read but another decision landed first.
	repo := &mockModerationRepo{detail: pendingDetail(), updateApplied: false}
	svc := NewModerationService(repo, nil, nil, nil)

	_, err := svc.Decide(context.Background(), "mod-1", models.RoleModerator, "ds-1", models.StatusRejected)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrAlreadyDecided.Code, appErr.Code)
	assert.True(t, repo.updateCalled)
}

func TestDecideInvalidTarget(t *testing.T) {
	repo := &mockModerationRepo{detail: pendingDetail()}
	svc := NewModerationService(repo, nil, nil, nil)

	_, err := svc.Decide(context.Background(), "mod-1", models.RoleModerator, "ds-1", models.StatusPending)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestQueueRequiresModerator(t *testing.T) {
	svc := NewModerationService(&mockModerationRepo{}, nil, nil, nil)

	_, err := svc.Queue(context.Background(), models.RoleUser)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	queue, err := svc.Queue(context.Background(), models.RoleModerator)
	require.NoError(t, err)
	assert.NotNil(t, queue)
}
