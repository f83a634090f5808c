package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/service"
)

type fakeModerationRepo struct {
	detail       *models.DatasetDetail
	applied      bool
	updateCalled bool
	pending      []models.DatasetDetail
}

func (f *fakeModerationRepo) FindByID(ctx context.Context, id string) (*models.DatasetDetail, error) {
	return f.detail, nil
}

func (f *fakeModerationRepo) ListPending(ctx context.Context) ([]models.DatasetDetail, error) {
	return f.pending, nil
}

func (f *fakeModerationRepo) UpdateStatus(ctx context.Context, id string, expected, next models.DatasetStatus, decidedBy string, decidedAt time.Time) (bool, error) {
	f.updateCalled = true
	return f.applied, nil
}

func newModerationHandler(repo *fakeModerationRepo) *ModerationHandler {
	svc := service.NewModerationService(repo, nil, nil, nil)
	return NewModerationHandler(svc, service.NewMetricsService())
}

func pendingDataset() *models.DatasetDetail {
	return &models.DatasetDetail{Dataset: models.Dataset{ID: "ds-1", Status: models.StatusPending}}
}

func TestModerationApprove(t *testing.T) {
	repo := &fakeModerationRepo{detail: pendingDataset(), applied: true}
	handler := newModerationHandler(repo)

	c, rec := testContext(http.MethodPost, "/moderation/datasets/ds-1/approve", "")
	c.Params = gin.Params{{Key: "id", Value: "ds-1"}}
	authenticate(c, "mod-1", models.RoleModerator)
	handler.Approve(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, repo.updateCalled)
}

func TestModerationRejectForbiddenForUsers(t *testing.T) {
	repo := &fakeModerationRepo{detail: pendingDataset()}
	handler := newModerationHandler(repo)

	c, rec := testContext(http.MethodPost, "/moderation/datasets/ds-1/reject", "")
	c.Params = gin.Params{{Key: "id", Value: "ds-1"}}
	authenticate(c, "user-1", models.RoleUser)
	handler.Reject(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, repo.updateCalled)
}

func TestModerationDecideConflictOnLostRace(t *testing.T) {
	repo := &fakeModerationRepo{detail: pendingDataset(), applied: false}
	handler := newModerationHandler(repo)

	c, rec := testContext(http.MethodPost, "/moderation/datasets/ds-1/approve", "")
	c.Params = gin.Params{{Key: "id", Value: "ds-1"}}
	authenticate(c, "mod-1", models.RoleAdmin)
	handler.Approve(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestModerationQueueRequiresModerator(t *testing.T) {
	handler := newModerationHandler(&fakeModerationRepo{})

	c, rec := testContext(http.MethodGet, "/moderation/queue", "")
	authenticate(c, "user-1", models.RoleUser)
	handler.Queue(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestModerationQueueReturnsPending(t *testing.T) {
	repo := &fakeModerationRepo{pending: []models.DatasetDetail{*pendingDataset()}}
	handler := newModerationHandler(repo)

	c, rec := testContext(http.MethodGet, "/moderation/queue", "")
	authenticate(c, "mod-1", models.RoleModerator)
	handler.Queue(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}
