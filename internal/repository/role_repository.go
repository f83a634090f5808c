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

// RoleRepository reads and writes explicit role grants. Accounts without a
// grant row are plain users.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository creates a new instance of RoleRepository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// RoleOf resolves the effective role for a user. A missing row or an
// unrecognised stored value both resolve to the base user role.
func (r *RoleRepository) RoleOf(ctx context.Context, userID string) (models.Role, error) {
	const query = `SELECT role FROM roles WHERE user_id = $1 LIMIT 1`
	var raw string
	if err := r.db.GetContext(ctx, &raw, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return models.RoleUser, nil
		}
		return models.RoleUser, fmt.Errorf("resolve role: %w", err)
	}
	role, ok := models.ParseRole(raw)
	if !ok {
		return models.RoleUser, nil
	}
	return role, nil
}

// Assign upserts a role grant for a user.
func (r *RoleRepository) Assign(ctx context.Context, userID string, role models.Role) error {
	const query = `INSERT INTO roles (id, user_id, role, created_at) VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, role, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// Revoke removes a role grant, demoting the user to the base role.
func (r *RoleRepository) Revoke(ctx context.Context, userID string) error {
	const query = `DELETE FROM roles WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}

// ListAssignments returns every explicit grant, newest first.
func (r *RoleRepository) ListAssignments(ctx context.Context) ([]models.RoleAssignment, error) {
	const query = `SELECT id, user_id, role, created_at FROM roles ORDER BY created_at DESC`
	var assignments []models.RoleAssignment
	if err := r.db.SelectContext(ctx, &assignments, query); err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	return assignments, nil
}
