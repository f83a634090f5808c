package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omed-project/omed-api/internal/models"
	appErrors "github.com/omed-project/omed-api/pkg/errors"
	"github.com/omed-project/omed-api/pkg/jobs"
	"github.com/omed-project/omed-api/pkg/storage"
)

type mockExportSource struct {
	datasets []models.Dataset
	err      error
}

func (m *mockExportSource) ListApprovedForExport(ctx context.Context) ([]models.Dataset, error) {
	return m.datasets, m.err
}

type mockExportStorage struct {
	saved map[string][]byte
}

func (m *mockExportStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockExportStorage) Open(filename string) (*os.File, error) {
	return nil, errors.New("not backed by disk")
}

func (m *mockExportStorage) Delete(filename string) error { return nil }

func (m *mockExportStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

func newExportService(source *mockExportSource, store *mockExportStorage) *ExportService {
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	return NewExportService(source, store, signer, ExportServiceConfig{APIPrefix: "/api/v1"}, nil)
}

func TestExportProcessCompletesCSV(t *testing.T) {
	source := &mockExportSource{datasets: []models.Dataset{
		{ID: "ds-1", Title: "Chest X-Rays", Specialty: "radiology", UpvotesCount: 4, MonthlyDownloads: 9, DatasetLink: "https://example.org", CreatedAt: time.Now()},
	}}
	store := &mockExportStorage{}
	svc := newExportService(source, store)

	job := &models.ExportJob{ID: "job-1", Format: models.ExportFormatCSV, Status: models.ExportStatusQueued, RequestedBy: "user-1", CreatedAt: time.Now()}
	svc.tracked[job.ID] = job

	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID, Payload: job.ID}))

	tracked := svc.snapshot(job.ID)
	require.NotNil(t, tracked)
	assert.Equal(t, models.ExportStatusCompleted, tracked.Status)
	assert.NotEmpty(t, tracked.DownloadURL)
	assert.True(t, strings.HasPrefix(tracked.DownloadURL, "/api/v1/exports/download/"))
	require.NotNil(t, tracked.CompletedAt)

	require.Len(t, store.saved, 1)
	for _, payload := range store.saved {
		assert.Contains(t, string(payload), "Chest X-Rays")
	}
}

func TestExportProcessFailureMarksJob(t *testing.T) {
	source := &mockExportSource{err: errors.New("db down")}
	svc := newExportService(source, &mockExportStorage{})

	job := &models.ExportJob{ID: "job-1", Format: models.ExportFormatCSV, RequestedBy: "user-1"}
	svc.tracked[job.ID] = job

	require.Error(t, svc.process(context.Background(), jobs.Job{ID: job.ID, Payload: job.ID}))

	tracked := svc.snapshot(job.ID)
	assert.Equal(t, models.ExportStatusFailed, tracked.Status)
	assert.NotEmpty(t, tracked.Error)
}

func TestExportRequestRejectsUnknownFormat(t *testing.T) {
	svc := newExportService(&mockExportSource{}, &mockExportStorage{})

	_, err := svc.Request(context.Background(), "user-1", models.ExportFormat("xlsx"))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExportJobVisibility(t *testing.T) {
	svc := newExportService(&mockExportSource{}, &mockExportStorage{})
	svc.tracked["job-1"] = &models.ExportJob{ID: "job-1", RequestedBy: "user-1"}

	job, err := svc.Job("user-1", models.RoleUser, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)

	// Another user's poll reads like a missing job.
	_, err = svc.Job("user-2", models.RoleUser, "job-1")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	_, err = svc.Job("user-2", models.RoleAdmin, "job-1")
	require.NoError(t, err)
}

func TestExportRequestQueues(t *testing.T) {
	svc := newExportService(&mockExportSource{}, &mockExportStorage{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Request(context.Background(), "user-1", models.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatPDF, job.Format)
	assert.Equal(t, "user-1", job.RequestedBy)
	assert.NotEmpty(t, job.ID)
}
