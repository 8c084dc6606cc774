package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-ops-api/internal/dto"
	"github.com/noah-isme/tutor-ops-api/internal/models"
	"github.com/noah-isme/tutor-ops-api/internal/schedule"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
)

type payPeriodStore interface {
	IsLocked(ctx context.Context, periodStart time.Time) (bool, error)
	Lock(ctx context.Context, lock *models.PayPeriodLock) error
	ListLocks(ctx context.Context) ([]models.PayPeriodLock, error)
	CreateAdjustment(ctx context.Context, adjustment *models.Adjustment) error
	FindAdjustment(ctx context.Context, id string) (*models.Adjustment, error)
	DeleteAdjustment(ctx context.Context, id string) error
	ListAdjustments(ctx context.Context, periodStart time.Time, tutorID string) ([]models.Adjustment, error)
}

type submittedCounter interface {
	CountSubmittedInPeriod(ctx context.Context, periodStart, periodEnd time.Time) (int, error)
}

type tutorReader interface {
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
}

// PayPeriodService owns the one-way period lock flag and the manual
// adjustments that ride on a period.
type PayPeriodService struct {
	periods   payPeriodStore
	sessions  submittedCounter
	tutors    tutorReader
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPayPeriodService constructs the service.
func NewPayPeriodService(periods payPeriodStore, sessions submittedCounter, tutors tutorReader, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *PayPeriodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PayPeriodService{periods: periods, sessions: sessions, tutors: tutors, audit: audit, validator: validate, logger: logger}
}

// Lock closes a pay period. Fails while any session in the period is still
// SUBMITTED; succeeds otherwise, including when called twice.
func (s *PayPeriodService) Lock(ctx context.Context, req dto.LockPeriodRequest, actor *models.JWTClaims) (*models.PayPeriodLock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, appErrors.ErrInvalidRequest.Status, "invalid lock payload")
	}
	periodStart, err := parsePeriodStart(req.PeriodStart)
	if err != nil {
		return nil, err
	}

	pending, err := s.sessions.CountSubmittedInPeriod(ctx, periodStart, periodStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count submitted sessions")
	}
	if pending > 0 {
		return nil, appErrors.ErrPendingSessions
	}

	lock := &models.PayPeriodLock{
		PeriodStart: periodStart,
		LockedBy:    actor.UserID,
		LockedAt:    time.Now().UTC(),
	}
	if err := s.periods.Lock(ctx, lock); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock pay period")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionPeriodLock, "pay_period", req.PeriodStart, lock)
	return lock, nil
}

// ListLocks returns all locked periods, newest first.
func (s *PayPeriodService) ListLocks(ctx context.Context) ([]models.PayPeriodLock, error) {
	locks, err := s.periods.ListLocks(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list period locks")
	}
	return locks, nil
}

// CreateAdjustment records a manual bonus or penalty. Adjustments belong to a
// period and can only be created while it is open.
func (s *PayPeriodService) CreateAdjustment(ctx context.Context, req dto.CreateAdjustmentRequest, actor *models.JWTClaims) (*models.Adjustment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, appErrors.ErrInvalidRequest.Status, "invalid adjustment payload")
	}
	periodStart, err := parsePeriodStart(req.PeriodStart)
	if err != nil {
		return nil, err
	}

	if _, err := s.tutors.FindByID(ctx, req.TutorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}

	locked, err := s.periods.IsLocked(ctx, periodStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check period lock")
	}
	if locked {
		return nil, appErrors.ErrPayPeriodLocked
	}

	adjustment := &models.Adjustment{
		TutorID:     req.TutorID,
		PeriodStart: periodStart,
		Type:        models.AdjustmentType(req.Type),
		AmountCents: req.AmountCents,
		Reason:      req.Reason,
		CreatedBy:   actor.UserID,
	}
	if err := s.periods.CreateAdjustment(ctx, adjustment); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create adjustment")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionAdjustmentCreate, "adjustment", adjustment.ID, adjustment)
	return adjustment, nil
}

// DeleteAdjustment removes an adjustment while its period is still open.
func (s *PayPeriodService) DeleteAdjustment(ctx context.Context, id string, actor *models.JWTClaims) error {
	adjustment, err := s.periods.FindAdjustment(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrAdjustmentNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load adjustment")
	}

	locked, err := s.periods.IsLocked(ctx, adjustment.PeriodStart)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check period lock")
	}
	if locked {
		return appErrors.ErrPayPeriodLocked
	}

	if err := s.periods.DeleteAdjustment(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrAdjustmentNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete adjustment")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionAdjustmentDelete, "adjustment", id, adjustment)
	return nil
}

// ListAdjustments returns a period's adjustments, optionally for one tutor.
func (s *PayPeriodService) ListAdjustments(ctx context.Context, periodStartRaw, tutorID string) ([]models.Adjustment, error) {
	periodStart, err := parsePeriodStart(periodStartRaw)
	if err != nil {
		return nil, err
	}
	adjustments, err := s.periods.ListAdjustments(ctx, periodStart, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list adjustments")
	}
	return adjustments, nil
}

// parsePeriodStart parses a YYYY-MM-DD period key and canonicalizes it to the
// Monday of its week, so any date in a week addresses the same period.
func parsePeriodStart(raw string) (time.Time, error) {
	day, err := time.ParseInLocation(dto.PeriodDateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidRequest, "period_start must be formatted YYYY-MM-DD")
	}
	return schedule.PeriodStart(day), nil
}

func (s *PayPeriodService) emitAudit(ctx context.Context, userID, action, resource, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
	}
	if payload != nil {
		log.NewValues, _ = json.Marshal(payload)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record pay period audit log", zap.Error(err))
	}
}
