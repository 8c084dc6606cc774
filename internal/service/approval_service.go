package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-ops-api/internal/dto"
	"github.com/noah-isme/tutor-ops-api/internal/models"
	"github.com/noah-isme/tutor-ops-api/internal/repository"
	"github.com/noah-isme/tutor-ops-api/internal/schedule"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
)

type sessionWorkflow interface {
	FindSnapshot(ctx context.Context, logicalSessionID string) (*models.SessionSnapshot, error)
	TransitionStatus(ctx context.Context, logicalSessionID string, allowed []models.SessionStatus, to models.SessionStatus) (*models.SessionSnapshot, error)
}

// ApprovalService drives the DRAFT -> SUBMITTED -> APPROVED/REJECTED state
// machine on top of the ledger. Transitions never touch the interval or notes.
type ApprovalService struct {
	sessions sessionWorkflow
	locks    periodLockChecker
	audit    auditLogger
	logger   *zap.Logger
	metrics  *MetricsService
}

// NewApprovalService constructs the service.
func NewApprovalService(sessions sessionWorkflow, locks periodLockChecker, audit auditLogger, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{sessions: sessions, locks: locks, audit: audit, logger: logger}
}

// WithMetrics attaches an optional metrics sink.
func (s *ApprovalService) WithMetrics(m *MetricsService) *ApprovalService {
	s.metrics = m
	return s
}

// Submit hands a DRAFT session to the reviewer. Blocked once the session's pay
// period is locked.
func (s *ApprovalService) Submit(ctx context.Context, sessionID string, actor *models.JWTClaims) (*models.SessionSnapshot, error) {
	current, err := s.sessions.FindSnapshot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if actor.Role == models.RoleTutor {
		if actor.TutorID == nil || current.TutorID != *actor.TutorID {
			return nil, appErrors.ErrSessionNotFound
		}
	}

	locked, err := s.locks.IsLocked(ctx, schedule.PeriodStart(current.StartsAt))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check period lock")
	}
	if locked {
		return nil, appErrors.ErrPayPeriodLocked
	}

	snapshot, err := s.transition(ctx, sessionID, models.SessionStatusDraft, models.SessionStatusSubmitted, appErrors.ErrOnlyDraftEditable)
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionSessionSubmit, sessionID, current, snapshot, "")
	return snapshot, nil
}

// Approve flips a SUBMITTED session to APPROVED.
func (s *ApprovalService) Approve(ctx context.Context, sessionID string, actor *models.JWTClaims) (*models.SessionSnapshot, error) {
	before, err := s.sessions.FindSnapshot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	snapshot, err := s.transition(ctx, sessionID, models.SessionStatusSubmitted, models.SessionStatusApproved, appErrors.ErrOnlySubmittedApprove)
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionSessionApprove, sessionID, before, snapshot, "")
	return snapshot, nil
}

// Reject flips a SUBMITTED session to REJECTED with an optional reason.
func (s *ApprovalService) Reject(ctx context.Context, sessionID, reason string, actor *models.JWTClaims) (*models.SessionSnapshot, error) {
	before, err := s.sessions.FindSnapshot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	snapshot, err := s.transition(ctx, sessionID, models.SessionStatusSubmitted, models.SessionStatusRejected, appErrors.ErrOnlySubmittedReject)
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionSessionReject, sessionID, before, snapshot, reason)
	return snapshot, nil
}

// BulkApprove approves every approvable id and reports the rest as skipped.
// The batch never fails as a whole.
func (s *ApprovalService) BulkApprove(ctx context.Context, req dto.BulkReviewRequest, actor *models.JWTClaims) []dto.BulkReviewResult {
	return s.bulkReview(ctx, req.SessionIDs, actor, dto.BulkOutcomeApproved, func(ctx context.Context, id string) error {
		_, err := s.Approve(ctx, id, actor)
		return err
	})
}

// BulkReject rejects every rejectable id and reports the rest as skipped.
func (s *ApprovalService) BulkReject(ctx context.Context, req dto.BulkReviewRequest, actor *models.JWTClaims) []dto.BulkReviewResult {
	return s.bulkReview(ctx, req.SessionIDs, actor, dto.BulkOutcomeRejected, func(ctx context.Context, id string) error {
		_, err := s.Reject(ctx, id, req.Reason, actor)
		return err
	})
}

func (s *ApprovalService) bulkReview(ctx context.Context, ids []string, actor *models.JWTClaims, outcome string, apply func(ctx context.Context, id string) error) []dto.BulkReviewResult {
	results := make([]dto.BulkReviewResult, 0, len(ids))
	for _, id := range ids {
		if err := apply(ctx, id); err != nil {
			results = append(results, dto.BulkReviewResult{
				SessionID: id,
				Outcome:   dto.BulkOutcomeSkipped,
				Reason:    appErrors.FromError(err).Code,
			})
			continue
		}
		results = append(results, dto.BulkReviewResult{SessionID: id, Outcome: outcome})
	}
	return results
}

func (s *ApprovalService) transition(ctx context.Context, sessionID string, from, to models.SessionStatus, conflictErr *appErrors.Error) (*models.SessionSnapshot, error) {
	snapshot, err := s.sessions.TransitionStatus(ctx, sessionID, []models.SessionStatus{from}, to)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, conflictErr
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition session")
	}
	s.metrics.RecordTransition(string(to))
	return snapshot, nil
}

func (s *ApprovalService) emitAudit(ctx context.Context, userID, action, sessionID string, before, after *models.SessionSnapshot, reason string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "session",
		ResourceID: &sessionID,
		CreatedAt:  time.Now().UTC(),
	}
	if before != nil {
		log.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		payload := map[string]interface{}{"session": after}
		if reason != "" {
			payload["reason"] = reason
		}
		log.NewValues, _ = json.Marshal(payload)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record approval audit log", zap.Error(err))
	}
}
