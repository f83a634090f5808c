package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/query"
)

func newDatasetMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func datasetRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "title", "abstract", "doi", "tags", "specialty", "dataset_link", "cover_image_url",
		"sample_data", "case_size", "submitted_by", "status", "approved_by", "approved_at",
		"upvotes_count", "monthly_downloads", "created_at", "updated_at"}).
		AddRow("ds-1", "Chest X-Ray Set", "A collection of annotated chest radiographs for pneumonia detection.",
			nil, "{radiology}", "radiology", "https://example.org/data", nil,
			nil, "1200", "user-1", "approved", "mod-1", now, 4, 12, now, now)
}

func TestDatasetRepositoryListRestrictsToApproved(t *testing.T) {
	db, mock, cleanup := newDatasetMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	mock.ExpectQuery(`SELECT id, .+ FROM datasets WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT 24 OFFSET 0`).
		WithArgs(models.StatusApproved).
		WillReturnRows(datasetRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM datasets WHERE 1=1 AND status = \$1`).
		WithArgs(models.StatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	datasets, total, err := repo.List(context.Background(), query.Compile(nil), true, 1, 24)
	require.NoError(t, err)
	assert.Len(t, datasets, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryListUnrestricted(t *testing.T) {
	db, mock, cleanup := newDatasetMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	mock.ExpectQuery(`SELECT id, .+ FROM datasets WHERE 1=1 ORDER BY created_at DESC LIMIT 24 OFFSET 0`).
		WillReturnRows(datasetRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM datasets WHERE 1=1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), query.Compile(nil), false, 1, 24)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newDatasetMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	spec := query.Compile(map[string]string{
		"search":      "pneumonia",
		"specialties": "radiology,cardiology",
		"min_upvotes": "3",
		"sort":        "most_upvoted",
	})

	mock.ExpectQuery(`SELECT id, .+ FROM datasets WHERE 1=1 AND status = \$1 AND \(title ILIKE \$2 OR abstract ILIKE \$2 OR EXISTS .+\) AND specialty = ANY\(\$3\) AND upvotes_count >= \$4 ORDER BY upvotes_count DESC, created_at DESC LIMIT 24 OFFSET 0`).
		WithArgs(models.StatusApproved, "%pneumonia%", sqlmock.AnyArg(), 3).
		WillReturnRows(datasetRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM datasets WHERE 1=1 AND status = \$1`).
		WithArgs(models.StatusApproved, "%pneumonia%", sqlmock.AnyArg(), 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), spec, true, 1, 24)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newDatasetMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	mock.ExpectExec("INSERT INTO datasets").
		WillReturnResult(sqlmock.NewResult(1, 1))

	dataset := &models.Dataset{
		Title:       "Dermatology Image Bank",
		Abstract:    "Labelled dermatoscopic images gathered across three teaching hospitals.",
		Specialty:   "dermatology",
		DatasetLink: "https://example.org/derm",
		SubmittedBy: "user-7",
	}
	require.NoError(t, repo.Create(context.Background(), dataset))

	assert.NotEmpty(t, dataset.ID)
	assert.Equal(t, models.StatusPending, dataset.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newDatasetMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	decidedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE datasets SET status").
		WithArgs("ds-1", models.StatusPending, models.StatusApproved, "mod-1", decidedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.UpdateStatus(context.Background(), "ds-1", models.StatusPending, models.StatusApproved, "mod-1", decidedAt)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryUpdateStatusLostRace(t *testing.T) {
	db, mock, cleanup := newDatasetMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	// Another moderator decided first: the status guard matches no rows.
	decidedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE datasets SET status").
		WithArgs("ds-1", models.StatusPending, models.StatusRejected, "mod-2", decidedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.UpdateStatus(context.Background(), "ds-1", models.StatusPending, models.StatusRejected, "mod-2", decidedAt)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryListPending(t *testing.T) {
	db, mock, cleanup := newDatasetMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "abstract", "doi", "tags", "specialty", "dataset_link", "cover_image_url",
		"sample_data", "case_size", "submitted_by", "status", "approved_by", "approved_at",
		"upvotes_count", "monthly_downloads", "created_at", "updated_at", "submitter_name", "submitter_email"}).
		AddRow("ds-2", "ECG Archive", "Twelve-lead recordings with arrhythmia annotations collected over two years.",
			nil, "{cardiology}", "cardiology", "https://example.org/ecg", nil,
			nil, "300", "user-2", "pending", nil, nil, 0, 0, now, now, "Dana", "dana@example.org")
	mock.ExpectQuery(`SELECT d\.id, .+ FROM datasets d\s+LEFT JOIN users u ON u\.id = d\.submitted_by\s+WHERE d\.status = \$1`).
		WithArgs(models.StatusPending).
		WillReturnRows(rows)

	pending, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.StatusPending, pending[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
