package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-ops-api/internal/models"
)

func newPayPeriodRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPayPeriodRepositoryIsLocked(t *testing.T) {
	db, mock, cleanup := newPayPeriodRepoMock(t)
	defer cleanup()

	repo := NewPayPeriodRepository(db)
	periodStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM pay_period_locks")).
		WithArgs(periodStart).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	locked, err := repo.IsLocked(context.Background(), periodStart)
	require.NoError(t, err)
	require.True(t, locked)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM pay_period_locks")).
		WithArgs(periodStart).
		WillReturnError(sql.ErrNoRows)
	locked, err = repo.IsLocked(context.Background(), periodStart)
	require.NoError(t, err)
	require.False(t, locked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayPeriodRepositoryLockIsIdempotent(t *testing.T) {
	db, mock, cleanup := newPayPeriodRepoMock(t)
	defer cleanup()

	repo := NewPayPeriodRepository(db)
	lock := &models.PayPeriodLock{
		PeriodStart: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		LockedBy:    "admin-1",
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pay_period_locks")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Lock(context.Background(), lock))

	// Second lock hits ON CONFLICT DO NOTHING and still succeeds.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pay_period_locks")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.Lock(context.Background(), lock))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayPeriodRepositoryAdjustments(t *testing.T) {
	db, mock, cleanup := newPayPeriodRepoMock(t)
	defer cleanup()

	repo := NewPayPeriodRepository(db)
	periodStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO adjustments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	adjustment := &models.Adjustment{
		TutorID:     "tutor-1",
		PeriodStart: periodStart,
		Type:        models.AdjustmentTypeBonus,
		AmountCents: 5000,
		Reason:      "referral bonus",
		CreatedBy:   "admin-1",
	}
	require.NoError(t, repo.CreateAdjustment(context.Background(), adjustment))
	require.NotEmpty(t, adjustment.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM adjustments WHERE period_start = $1 AND tutor_id = $2")).
		WithArgs(periodStart, "tutor-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tutor_id", "period_start", "type", "amount_cents", "reason", "created_by", "created_at",
		}).AddRow(adjustment.ID, "tutor-1", periodStart, "BONUS", 5000, "referral bonus", "admin-1", time.Now()))

	list, err := repo.ListAdjustments(context.Background(), periodStart, "tutor-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, int64(5000), list[0].SignedAmountCents())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayPeriodRepositoryDeleteAdjustmentNotFound(t *testing.T) {
	db, mock, cleanup := newPayPeriodRepoMock(t)
	defer cleanup()

	repo := NewPayPeriodRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM adjustments WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteAdjustment(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
