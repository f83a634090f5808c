package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// VoteRepository tracks upvotes and download events. Counter columns on the
// datasets table move inside the same transaction as the event row, so the
// denormalised counts cannot drift from the event log.
type VoteRepository struct {
	db *sqlx.DB
}

// NewVoteRepository creates a new instance of VoteRepository.
func NewVoteRepository(db *sqlx.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Upvote records an upvote and bumps the dataset counter. Returns false when
// the user has already upvoted this dataset.
func (r *VoteRepository) Upvote(ctx context.Context, datasetID, userID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin upvote tx: %w", err)
	}
	defer tx.Rollback()

	const insert = `INSERT INTO upvotes (id, dataset_id, user_id, created_at) VALUES ($1, $2, $3, $4)
        ON CONFLICT (dataset_id, user_id) DO NOTHING`
	res, err := tx.ExecContext(ctx, insert, uuid.NewString(), datasetID, userID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("insert upvote: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert upvote: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	const bump = `UPDATE datasets SET upvotes_count = upvotes_count + 1 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, datasetID); err != nil {
		return false, fmt.Errorf("bump upvote count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit upvote: %w", err)
	}
	return true, nil
}

// RemoveUpvote deletes an upvote and decrements the counter. Returns false
// when no upvote existed.
func (r *VoteRepository) RemoveUpvote(ctx context.Context, datasetID, userID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin remove upvote tx: %w", err)
	}
	defer tx.Rollback()

	const remove = `DELETE FROM upvotes WHERE dataset_id = $1 AND user_id = $2`
	res, err := tx.ExecContext(ctx, remove, datasetID, userID)
	if err != nil {
		return false, fmt.Errorf("delete upvote: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete upvote: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	const drop = `UPDATE datasets SET upvotes_count = GREATEST(upvotes_count - 1, 0) WHERE id = $1`
	if _, err := tx.ExecContext(ctx, drop, datasetID); err != nil {
		return false, fmt.Errorf("drop upvote count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit remove upvote: %w", err)
	}
	return true, nil
}

// HasUpvoted reports whether the user already upvoted the dataset.
func (r *VoteRepository) HasUpvoted(ctx context.Context, datasetID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM upvotes WHERE dataset_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, datasetID, userID); err != nil {
		return false, fmt.Errorf("check upvote: %w", err)
	}
	return exists, nil
}

// RecordDownload logs a download event and bumps the monthly counter. The
// user is optional since anonymous visitors can download approved datasets.
func (r *VoteRepository) RecordDownload(ctx context.Context, datasetID string, userID *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin download tx: %w", err)
	}
	defer tx.Rollback()

	const insert = `INSERT INTO downloads (id, dataset_id, user_id, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), datasetID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert download: %w", err)
	}

	const bump = `UPDATE datasets SET monthly_downloads = monthly_downloads + 1 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, datasetID); err != nil {
		return fmt.Errorf("bump download count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit download: %w", err)
	}
	return nil
}
