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
	"github.com/noah-isme/tutor-ops-api/internal/repository"
	"github.com/noah-isme/tutor-ops-api/internal/schedule"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
)

type sessionLedger interface {
	HasOverlap(ctx context.Context, tutorID string, startsAt, endsAt time.Time, excludeSessionID string) (bool, error)
	CreateWithEvent(ctx context.Context, params repository.CreateSessionParams) (*models.SessionSnapshot, *models.SessionEvent, error)
	AppendEvent(ctx context.Context, params repository.AppendEventParams) (*models.SessionSnapshot, *models.SessionEvent, error)
	FindSnapshot(ctx context.Context, logicalSessionID string) (*models.SessionSnapshot, error)
	ListEvents(ctx context.Context, logicalSessionID string) ([]models.SessionEvent, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionSnapshot, error)
}

type assignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

type periodLockChecker interface {
	IsLocked(ctx context.Context, periodStart time.Time) (bool, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SessionRules bounds what a single session may look like.
type SessionRules struct {
	MinMinutes int
	MaxMinutes int
}

// SessionService owns the create/amend/void protocol of the session ledger.
// Every mutation re-validates the scheduling invariants, appends one event and
// re-projects the snapshot.
type SessionService struct {
	sessions    sessionLedger
	assignments assignmentReader
	locks       periodLockChecker
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
	rules       SessionRules
	now         func() time.Time
}

// NewSessionService constructs the service.
func NewSessionService(sessions sessionLedger, assignments assignmentReader, locks periodLockChecker, audit auditLogger, validate *validator.Validate, logger *zap.Logger, rules SessionRules) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if rules.MinMinutes <= 0 {
		rules.MinMinutes = 15
	}
	if rules.MaxMinutes <= 0 {
		rules.MaxMinutes = 480
	}
	return &SessionService{
		sessions:    sessions,
		assignments: assignments,
		locks:       locks,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		rules:       rules,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics attaches an optional metrics sink.
func (s *SessionService) WithMetrics(m *MetricsService) *SessionService {
	s.metrics = m
	return s
}

// Create logs a new session as a version-1 ledger event with a DRAFT snapshot.
func (s *SessionService) Create(ctx context.Context, req dto.CreateSessionRequest, actor *models.JWTClaims) (*dto.SessionMutationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, appErrors.ErrInvalidRequest.Status, "invalid session payload")
	}
	if err := s.checkInterval(req.StartsAt, req.EndsAt); err != nil {
		return nil, err
	}

	assignment, err := s.loadActiveAssignment(ctx, req.AssignmentID)
	if err != nil {
		return nil, err
	}

	tutorID := assignment.TutorID
	if actor.Role == models.RoleTutor {
		if actor.TutorID == nil || assignment.TutorID != *actor.TutorID {
			return nil, appErrors.ErrStudentNotAssigned
		}
		tutorID = *actor.TutorID
	}
	if assignment.StudentID != req.StudentID {
		return nil, appErrors.ErrStudentMismatch
	}
	if !schedule.WithinAssignmentWindow(assignment, req.StartsAt, req.EndsAt) {
		return nil, appErrors.ErrOutsideWindow
	}

	// Friendlier error for the common case; the exclusion constraint closes
	// the remaining race window.
	overlap, err := s.sessions.HasOverlap(ctx, tutorID, req.StartsAt, req.EndsAt, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check overlap")
	}
	if overlap {
		return nil, appErrors.ErrOverlappingSession
	}

	snapshot, event, err := s.sessions.CreateWithEvent(ctx, repository.CreateSessionParams{
		TutorID:      tutorID,
		StudentID:    req.StudentID,
		AssignmentID: req.AssignmentID,
		StartsAt:     req.StartsAt.UTC(),
		EndsAt:       req.EndsAt.UTC(),
		Notes:        req.Notes,
		ActorUserID:  actor.UserID,
	})
	if err != nil {
		return nil, s.translate(err, "failed to create session")
	}

	s.metrics.RecordLedgerEvent(string(models.SessionActionCreate))
	s.emitAudit(ctx, actor.UserID, models.AuditActionSessionCreate, snapshot.LogicalSessionID, nil, snapshot)
	return &dto.SessionMutationResponse{Session: snapshot, Event: event}, nil
}

// Amend rewrites a DRAFT session's interval and notes as a new ledger event.
func (s *SessionService) Amend(ctx context.Context, sessionID string, req dto.AmendSessionRequest, actor *models.JWTClaims) (*dto.SessionMutationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, appErrors.ErrInvalidRequest.Status, "invalid amend payload")
	}
	if err := s.checkInterval(req.StartsAt, req.EndsAt); err != nil {
		return nil, err
	}

	current, err := s.loadOwnedSnapshot(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}

	// Both the session's prior period and the amended one must be open.
	if err := s.ensurePeriodOpen(ctx, current.StartsAt); err != nil {
		return nil, err
	}
	if err := s.ensurePeriodOpen(ctx, req.StartsAt); err != nil {
		return nil, err
	}

	assignment, err := s.loadActiveAssignment(ctx, current.AssignmentID)
	if err != nil {
		return nil, err
	}
	if !schedule.WithinAssignmentWindow(assignment, req.StartsAt, req.EndsAt) {
		return nil, appErrors.ErrOutsideWindow
	}

	overlap, err := s.sessions.HasOverlap(ctx, current.TutorID, req.StartsAt, req.EndsAt, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check overlap")
	}
	if overlap {
		return nil, appErrors.ErrOverlappingSession
	}

	snapshot, event, err := s.sessions.AppendEvent(ctx, repository.AppendEventParams{
		LogicalSessionID: sessionID,
		Action:           models.SessionActionAmend,
		StartsAt:         req.StartsAt.UTC(),
		EndsAt:           req.EndsAt.UTC(),
		Notes:            req.Notes,
		NewStatus:        models.SessionStatusDraft,
		AllowedStatuses:  []models.SessionStatus{models.SessionStatusDraft},
		ActorUserID:      actor.UserID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, appErrors.ErrSessionNotActive
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, s.translate(err, "failed to amend session")
	}

	s.metrics.RecordLedgerEvent(string(models.SessionActionAmend))
	s.emitAudit(ctx, actor.UserID, models.AuditActionSessionAmend, sessionID, current, snapshot)
	return &dto.SessionMutationResponse{Session: snapshot, Event: event}, nil
}

// Void retires a session from any state except VOID. Voided sessions leave the
// overlap check and payroll aggregation permanently.
func (s *SessionService) Void(ctx context.Context, sessionID string, actor *models.JWTClaims) (*dto.SessionMutationResponse, error) {
	current, err := s.loadOwnedSnapshot(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.ensurePeriodOpen(ctx, current.StartsAt); err != nil {
		return nil, err
	}

	snapshot, event, err := s.sessions.AppendEvent(ctx, repository.AppendEventParams{
		LogicalSessionID: sessionID,
		Action:           models.SessionActionVoid,
		StartsAt:         current.StartsAt,
		EndsAt:           current.EndsAt,
		Notes:            current.Notes,
		NewStatus:        models.SessionStatusVoid,
		AllowedStatuses: []models.SessionStatus{
			models.SessionStatusDraft,
			models.SessionStatusSubmitted,
			models.SessionStatusApproved,
			models.SessionStatusRejected,
		},
		ActorUserID: actor.UserID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, appErrors.ErrSessionNotActive
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, s.translate(err, "failed to void session")
	}

	s.metrics.RecordLedgerEvent(string(models.SessionActionVoid))
	s.emitAudit(ctx, actor.UserID, models.AuditActionSessionVoid, sessionID, current, snapshot)
	return &dto.SessionMutationResponse{Session: snapshot, Event: event}, nil
}

// Get returns a session's current snapshot, scoped to the owning tutor.
func (s *SessionService) Get(ctx context.Context, sessionID string, actor *models.JWTClaims) (*models.SessionSnapshot, error) {
	return s.loadOwnedSnapshot(ctx, sessionID, actor)
}

// ListEvents returns a session's full ledger in version order.
func (s *SessionService) ListEvents(ctx context.Context, sessionID string, actor *models.JWTClaims) ([]models.SessionEvent, error) {
	if _, err := s.loadOwnedSnapshot(ctx, sessionID, actor); err != nil {
		return nil, err
	}
	events, err := s.sessions.ListEvents(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list session events")
	}
	return events, nil
}

// List returns session snapshots matching the query. Tutors only ever see
// their own sessions regardless of requested filters.
func (s *SessionService) List(ctx context.Context, query dto.SessionQuery, actor *models.JWTClaims) ([]models.SessionSnapshot, error) {
	filter := models.SessionFilter{TutorID: query.TutorID}
	if actor.Role == models.RoleTutor {
		if actor.TutorID == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "tutor account has no tutor link")
		}
		filter.TutorID = *actor.TutorID
	}
	if query.Status != "" {
		filter.Status = []models.SessionStatus{models.SessionStatus(query.Status)}
	}
	if query.PeriodStart != "" {
		day, err := time.ParseInLocation(dto.PeriodDateLayout, query.PeriodStart, time.UTC)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidRequest, "period_start must be formatted YYYY-MM-DD")
		}
		start := schedule.PeriodStart(day)
		end := schedule.PeriodEndExclusive(day)
		filter.PeriodStart = &start
		filter.PeriodEnd = &end
	}

	snapshots, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return snapshots, nil
}

func (s *SessionService) checkInterval(startsAt, endsAt time.Time) error {
	if !endsAt.After(startsAt) {
		return appErrors.ErrEndBeforeStart
	}
	now := s.now()
	if startsAt.After(now) || endsAt.After(now) {
		return appErrors.ErrFutureSession
	}
	minutes := schedule.DurationMinutes(startsAt, endsAt)
	if minutes < s.rules.MinMinutes || minutes > s.rules.MaxMinutes {
		return appErrors.ErrInvalidDuration
	}
	return nil
}

func (s *SessionService) loadActiveAssignment(ctx context.Context, assignmentID string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrStudentNotAssigned
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if !assignment.Active {
		return nil, appErrors.ErrStudentNotAssigned
	}
	return assignment, nil
}

// loadOwnedSnapshot hides foreign sessions from tutors behind session_not_found.
func (s *SessionService) loadOwnedSnapshot(ctx context.Context, sessionID string, actor *models.JWTClaims) (*models.SessionSnapshot, error) {
	snapshot, err := s.sessions.FindSnapshot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if actor.Role == models.RoleTutor {
		if actor.TutorID == nil || snapshot.TutorID != *actor.TutorID {
			return nil, appErrors.ErrSessionNotFound
		}
	}
	return snapshot, nil
}

func (s *SessionService) ensurePeriodOpen(ctx context.Context, sessionDate time.Time) error {
	locked, err := s.locks.IsLocked(ctx, schedule.PeriodStart(sessionDate))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check period lock")
	}
	if locked {
		return appErrors.ErrPayPeriodLocked
	}
	return nil
}

func (s *SessionService) translate(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *SessionService) emitAudit(ctx context.Context, userID, action, sessionID string, before, after *models.SessionSnapshot) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "session",
		ResourceID: &sessionID,
	}
	if before != nil {
		log.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		log.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record session audit log", zap.Error(err))
	}
}
