package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-ops-api/internal/models"
)

// AssignmentRepository persists tutor-student assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	const query = `INSERT INTO assignments
(id, tutor_id, student_id, subject, start_date, end_date, hourly_rate_cents, allowed_weekdays, allowed_time_ranges, active, created_at, updated_at)
VALUES (:id, :tutor_id, :student_id, :subject, :start_date, :end_date, :hourly_rate_cents, :allowed_weekdays, :allowed_time_ranges, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return translateConstraint(err)
	}
	return nil
}

// UpdateSchedule rewrites the mutable scheduling fields of an assignment.
func (r *AssignmentRepository) UpdateSchedule(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments
SET start_date = :start_date, end_date = :end_date, hourly_rate_cents = :hourly_rate_cents,
    allowed_weekdays = :allowed_weekdays, allowed_time_ranges = :allowed_time_ranges, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, assignment)
	if err != nil {
		return translateConstraint(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate retires an assignment; rows are never deleted.
func (r *AssignmentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE assignments SET active = FALSE, updated_at = $1 WHERE id = $2 AND active`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deactivated assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID loads one assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT * FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// List returns assignments, optionally scoped to one tutor.
func (r *AssignmentRepository) List(ctx context.Context, tutorID string) ([]models.Assignment, error) {
	query := `SELECT * FROM assignments`
	args := []interface{}{}
	if tutorID != "" {
		query += ` WHERE tutor_id = $1`
		args = append(args, tutorID)
	}
	query += ` ORDER BY created_at DESC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}
