package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-ops-api/internal/dto"
	"github.com/noah-isme/tutor-ops-api/internal/models"
	"github.com/noah-isme/tutor-ops-api/internal/schedule"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
)

func seedSession(ledger *ledgerStub, id, tutorID string, status models.SessionStatus, startsAt time.Time) {
	ledger.seed(models.SessionSnapshot{
		LogicalSessionID: id,
		TutorID:          tutorID,
		StudentID:        "student-1",
		AssignmentID:     "assignment-1",
		StartsAt:         startsAt,
		EndsAt:           startsAt.Add(time.Hour),
		Status:           status,
		CurrentVersion:   1,
	})
}

func TestApprovalServiceSubmit(t *testing.T) {
	ledger := newLedgerStub()
	audit := &auditStub{}
	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	seedSession(ledger, "session-1", "tutor-1", models.SessionStatusDraft, startsAt)
	svc := NewApprovalService(ledger, newLockStub(), audit, nil)

	snapshot, err := svc.Submit(context.Background(), "session-1", tutorClaims("tutor-1"))
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusSubmitted, snapshot.Status)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionSessionSubmit, audit.logs[0].Action)

	// Resubmitting a non-draft session fails.
	_, err = svc.Submit(context.Background(), "session-1", tutorClaims("tutor-1"))
	require.ErrorIs(t, err, appErrors.ErrOnlyDraftEditable)
}

func TestApprovalServiceSubmitLockedPeriod(t *testing.T) {
	ledger := newLedgerStub()
	locks := newLockStub()
	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	seedSession(ledger, "session-1", "tutor-1", models.SessionStatusDraft, startsAt)
	locks.lock(schedule.PeriodStart(startsAt))
	svc := NewApprovalService(ledger, locks, &auditStub{}, nil)

	_, err := svc.Submit(context.Background(), "session-1", tutorClaims("tutor-1"))
	require.ErrorIs(t, err, appErrors.ErrPayPeriodLocked)
}

func TestApprovalServiceSubmitOwnership(t *testing.T) {
	ledger := newLedgerStub()
	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	seedSession(ledger, "session-1", "tutor-1", models.SessionStatusDraft, startsAt)
	svc := NewApprovalService(ledger, newLockStub(), &auditStub{}, nil)

	_, err := svc.Submit(context.Background(), "session-1", tutorClaims("tutor-2"))
	require.ErrorIs(t, err, appErrors.ErrSessionNotFound)
}

func TestApprovalServiceApproveAndReject(t *testing.T) {
	ledger := newLedgerStub()
	audit := &auditStub{}
	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	seedSession(ledger, "session-1", "tutor-1", models.SessionStatusSubmitted, startsAt)
	seedSession(ledger, "session-2", "tutor-1", models.SessionStatusSubmitted, startsAt.Add(2*time.Hour))
	seedSession(ledger, "session-3", "tutor-1", models.SessionStatusDraft, startsAt.Add(4*time.Hour))
	svc := NewApprovalService(ledger, newLockStub(), audit, nil)
	admin := adminClaims()

	approved, err := svc.Approve(context.Background(), "session-1", admin)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusApproved, approved.Status)

	rejected, err := svc.Reject(context.Background(), "session-2", "wrong student", admin)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusRejected, rejected.Status)

	_, err = svc.Approve(context.Background(), "session-3", admin)
	require.ErrorIs(t, err, appErrors.ErrOnlySubmittedApprove)

	_, err = svc.Reject(context.Background(), "session-3", "", admin)
	require.ErrorIs(t, err, appErrors.ErrOnlySubmittedReject)

	_, err = svc.Approve(context.Background(), "missing", admin)
	require.ErrorIs(t, err, appErrors.ErrSessionNotFound)
}

func TestApprovalServiceBulkApprovePartialSuccess(t *testing.T) {
	ledger := newLedgerStub()
	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	seedSession(ledger, "draft-1", "tutor-1", models.SessionStatusDraft, startsAt)
	seedSession(ledger, "submitted-1", "tutor-1", models.SessionStatusSubmitted, startsAt.Add(2*time.Hour))
	svc := NewApprovalService(ledger, newLockStub(), &auditStub{}, nil)

	results := svc.BulkApprove(context.Background(), dto.BulkReviewRequest{
		SessionIDs: []string{"draft-1", "submitted-1", "missing-1"},
	}, adminClaims())
	require.Len(t, results, 3)

	require.Equal(t, dto.BulkOutcomeSkipped, results[0].Outcome)
	require.Equal(t, appErrors.ErrOnlySubmittedApprove.Code, results[0].Reason)
	require.Equal(t, dto.BulkOutcomeApproved, results[1].Outcome)
	require.Equal(t, dto.BulkOutcomeSkipped, results[2].Outcome)
	require.Equal(t, appErrors.ErrSessionNotFound.Code, results[2].Reason)

	// Only the submitted session actually moved.
	require.Equal(t, models.SessionStatusDraft, ledger.snapshots["draft-1"].Status)
	require.Equal(t, models.SessionStatusApproved, ledger.snapshots["submitted-1"].Status)
}
