package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-ops-api/internal/models"
)

// PayPeriodRepository persists period lock flags and manual adjustments,
// both keyed by the canonical Monday start date.
type PayPeriodRepository struct {
	db *sqlx.DB
}

// NewPayPeriodRepository constructs the repository.
func NewPayPeriodRepository(db *sqlx.DB) *PayPeriodRepository {
	return &PayPeriodRepository{db: db}
}

// IsLocked reports whether a period lock flag exists.
func (r *PayPeriodRepository) IsLocked(ctx context.Context, periodStart time.Time) (bool, error) {
	const query = `SELECT 1 FROM pay_period_locks WHERE period_start = $1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, periodStart); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check period lock: %w", err)
	}
	return true, nil
}

// Lock inserts the one-way lock flag. A duplicate lock is not an error; the
// flag is monotonic.
func (r *PayPeriodRepository) Lock(ctx context.Context, lock *models.PayPeriodLock) error {
	if lock.LockedAt.IsZero() {
		lock.LockedAt = time.Now().UTC()
	}
	const query = `INSERT INTO pay_period_locks (period_start, locked_by, locked_at)
VALUES (:period_start, :locked_by, :locked_at)
ON CONFLICT (period_start) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, lock); err != nil {
		return fmt.Errorf("lock pay period: %w", err)
	}
	return nil
}

// ListLocks returns all lock flags, newest period first.
func (r *PayPeriodRepository) ListLocks(ctx context.Context) ([]models.PayPeriodLock, error) {
	const query = `SELECT * FROM pay_period_locks ORDER BY period_start DESC`
	var locks []models.PayPeriodLock
	if err := r.db.SelectContext(ctx, &locks, query); err != nil {
		return nil, fmt.Errorf("list period locks: %w", err)
	}
	return locks, nil
}

// CreateAdjustment records a manual bonus or penalty.
func (r *PayPeriodRepository) CreateAdjustment(ctx context.Context, adjustment *models.Adjustment) error {
	if adjustment.ID == "" {
		adjustment.ID = uuid.NewString()
	}
	if adjustment.CreatedAt.IsZero() {
		adjustment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO adjustments (id, tutor_id, period_start, type, amount_cents, reason, created_by, created_at)
VALUES (:id, :tutor_id, :period_start, :type, :amount_cents, :reason, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, adjustment); err != nil {
		return translateConstraint(err)
	}
	return nil
}

// FindAdjustment loads one adjustment.
func (r *PayPeriodRepository) FindAdjustment(ctx context.Context, id string) (*models.Adjustment, error) {
	const query = `SELECT * FROM adjustments WHERE id = $1`
	var adjustment models.Adjustment
	if err := r.db.GetContext(ctx, &adjustment, query, id); err != nil {
		return nil, err
	}
	return &adjustment, nil
}

// DeleteAdjustment removes an adjustment before its period locks.
func (r *PayPeriodRepository) DeleteAdjustment(ctx context.Context, id string) error {
	const query = `DELETE FROM adjustments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete adjustment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted adjustment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListAdjustments returns a period's adjustments, optionally for one tutor.
func (r *PayPeriodRepository) ListAdjustments(ctx context.Context, periodStart time.Time, tutorID string) ([]models.Adjustment, error) {
	query := `SELECT * FROM adjustments WHERE period_start = $1`
	args := []interface{}{periodStart}
	if tutorID != "" {
		query += ` AND tutor_id = $2`
		args = append(args, tutorID)
	}
	query += ` ORDER BY created_at ASC`
	var adjustments []models.Adjustment
	if err := r.db.SelectContext(ctx, &adjustments, query, args...); err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	return adjustments, nil
}
