package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/query"
)

// DatasetRepository manages persistence for catalog listings.
type DatasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository constructs a DatasetRepository.
func NewDatasetRepository(db *sqlx.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

const datasetColumns = `id, title, abstract, doi, tags, specialty, dataset_link, cover_image_url,
        sample_data, case_size, submitted_by, status, approved_by, approved_at,
        upvotes_count, monthly_downloads, created_at, updated_at`

// List returns datasets matching the compiled spec. When approvedOnly is set,
// an approved-status predicate is AND-ed in front of every other filter so the
// visibility tier can never be widened by user-supplied parameters.
func (r *DatasetRepository) List(ctx context.Context, spec query.Spec, approvedOnly bool, page, size int) ([]models.Dataset, int, error) {
	base := "FROM datasets"
	conditions := []string{"1=1"}
	var args []interface{}

	if approvedOnly {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, models.StatusApproved)
	}
	if spec.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(
			"(title ILIKE $%d OR abstract ILIKE $%d OR EXISTS (SELECT 1 FROM unnest(tags) tag WHERE tag ILIKE $%d))",
			idx, idx, idx))
		args = append(args, "%"+spec.Search+"%")
	}
	if len(spec.Specialties) > 0 {
		conditions = append(conditions, fmt.Sprintf("specialty = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(spec.Specialties))
	}
	if spec.MinUpvotes != nil {
		conditions = append(conditions, fmt.Sprintf("upvotes_count >= $%d", len(args)+1))
		args = append(args, *spec.MinUpvotes)
	}
	if spec.MinDownloads != nil {
		conditions = append(conditions, fmt.Sprintf("monthly_downloads >= $%d", len(args)+1))
		args = append(args, *spec.MinDownloads)
	}
	if spec.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *spec.DateFrom)
	}
	if spec.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *spec.DateTo)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 24
	}
	offset := (page - 1) * size

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d",
		datasetColumns, base, spec.Sort.OrderBy(), size, offset)

	var datasets []models.Dataset
	if err := r.db.SelectContext(ctx, &datasets, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list datasets: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count datasets: %w", err)
	}
	return datasets, total, nil
}

// FindByID fetches a dataset with its submitter profile joined in.
func (r *DatasetRepository) FindByID(ctx context.Context, id string) (*models.DatasetDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.name AS submitter_name, u.email AS submitter_email
        FROM (SELECT * FROM datasets WHERE id = $1) d
        LEFT JOIN users u ON u.id = d.submitted_by`, prefixColumns("d"))
	var detail models.DatasetDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListPending returns the moderation queue, oldest submissions first.
func (r *DatasetRepository) ListPending(ctx context.Context) ([]models.DatasetDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.name AS submitter_name, u.email AS submitter_email
        FROM datasets d
        LEFT JOIN users u ON u.id = d.submitted_by
        WHERE d.status = $1
        ORDER BY d.created_at ASC`, prefixColumns("d"))
	var pending []models.DatasetDetail
	if err := r.db.SelectContext(ctx, &pending, query, models.StatusPending); err != nil {
		return nil, fmt.Errorf("list pending datasets: %w", err)
	}
	return pending, nil
}

// Create inserts a new submission in pending status.
func (r *DatasetRepository) Create(ctx context.Context, dataset *models.Dataset) error {
	if dataset.ID == "" {
		dataset.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if dataset.CreatedAt.IsZero() {
		dataset.CreatedAt = now
	}
	dataset.UpdatedAt = now
	dataset.Status = models.StatusPending
	const query = `INSERT INTO datasets (id, title, abstract, doi, tags, specialty, dataset_link, cover_image_url,
        sample_data, case_size, submitted_by, status, upvotes_count, monthly_downloads, created_at, updated_at)
        VALUES (:id, :title, :abstract, :doi, :tags, :specialty, :dataset_link, :cover_image_url,
        :sample_data, :case_size, :submitted_by, :status, :upvotes_count, :monthly_downloads, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dataset); err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	return nil
}

// UpdateStatus applies a moderation decision. The update is conditioned on the
// record still holding the expected prior status, so of two concurrent
// decisions only one can take effect; a false return means the guard failed.
// Status, deciding actor and decision time change as one unit.
func (r *DatasetRepository) UpdateStatus(ctx context.Context, id string, expected, next models.DatasetStatus, decidedBy string, decidedAt time.Time) (bool, error) {
	const query = `UPDATE datasets SET status = $3, approved_by = $4, approved_at = $5, updated_at = $5
        WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, expected, next, decidedBy, decidedAt)
	if err != nil {
		return false, fmt.Errorf("update dataset status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update dataset status: %w", err)
	}
	return rows > 0, nil
}

// ListBySubmitter returns every submission owned by the given user, any status.
func (r *DatasetRepository) ListBySubmitter(ctx context.Context, userID string) ([]models.Dataset, error) {
	query := fmt.Sprintf(`SELECT %s FROM datasets WHERE submitted_by = $1 ORDER BY created_at DESC`, datasetColumns)
	var datasets []models.Dataset
	if err := r.db.SelectContext(ctx, &datasets, query, userID); err != nil {
		return nil, fmt.Errorf("list datasets by submitter: %w", err)
	}
	return datasets, nil
}

// ListApprovedForExport streams the full approved catalog for export jobs.
func (r *DatasetRepository) ListApprovedForExport(ctx context.Context) ([]models.Dataset, error) {
	query := fmt.Sprintf(`SELECT %s FROM datasets WHERE status = $1 ORDER BY created_at DESC`, datasetColumns)
	var datasets []models.Dataset
	if err := r.db.SelectContext(ctx, &datasets, query, models.StatusApproved); err != nil {
		return nil, fmt.Errorf("list approved datasets: %w", err)
	}
	return datasets, nil
}

func prefixColumns(alias string) string {
	parts := strings.Split(datasetColumns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
