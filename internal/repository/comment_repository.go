package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/omed-project/omed-api/internal/models"
)

// CommentRepository manages discussion entries on datasets.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository creates a new instance of CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// ListByDataset returns comments on a dataset with author profiles joined in,
// oldest first so the thread reads top to bottom.
func (r *CommentRepository) ListByDataset(ctx context.Context, datasetID string) ([]models.CommentDetail, error) {
	const query = `SELECT c.id, c.dataset_id, c.user_id, c.content, c.created_at, c.updated_at,
        u.name AS author_name, u.email AS author_email, u.avatar_type, u.avatar_value
        FROM comments c
        LEFT JOIN users u ON u.id = c.user_id
        WHERE c.dataset_id = $1
        ORDER BY c.created_at ASC`
	var comments []models.CommentDetail
	if err := r.db.SelectContext(ctx, &comments, query, datasetID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Create inserts a new comment.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	const query = `INSERT INTO comments (id, dataset_id, user_id, content, created_at, updated_at)
        VALUES (:id, :dataset_id, :user_id, :content, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// FindByID returns a single comment.
func (r *CommentRepository) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	const query = `SELECT id, dataset_id, user_id, content, created_at, updated_at FROM comments WHERE id = $1 LIMIT 1`
	var comment models.Comment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return &comment, nil
}

// Delete removes a comment.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM comments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}
