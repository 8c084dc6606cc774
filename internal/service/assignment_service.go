package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-ops-api/internal/dto"
	"github.com/noah-isme/tutor-ops-api/internal/models"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
)

type assignmentStore interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	UpdateSchedule(ctx context.Context, assignment *models.Assignment) error
	Deactivate(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	List(ctx context.Context, tutorID string) ([]models.Assignment, error)
}

// AssignmentService administers tutor-student assignments. Identity is fixed
// at creation; only the scheduling window and rate override change afterwards.
type AssignmentService struct {
	assignments assignmentStore
	tutors      tutorReader
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(assignments assignmentStore, tutors tutorReader, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{assignments: assignments, tutors: tutors, audit: audit, validator: validate, logger: logger}
}

// Create binds a tutor to a student for a subject.
func (s *AssignmentService) Create(ctx context.Context, req dto.CreateAssignmentRequest, actor *models.JWTClaims) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, appErrors.ErrInvalidRequest.Status, "invalid assignment payload")
	}

	if _, err := s.tutors.FindByID(ctx, req.TutorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}

	startDate, endDate, err := parseAssignmentWindow(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		TutorID:           req.TutorID,
		StudentID:         req.StudentID,
		Subject:           req.Subject,
		StartDate:         startDate,
		EndDate:           endDate,
		HourlyRateCents:   req.HourlyRateCents,
		AllowedWeekdays:   pq.StringArray(req.AllowedWeekdays),
		AllowedTimeRanges: models.TimeRanges(req.AllowedTimeRanges),
		Active:            true,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.emitAudit(ctx, actor.UserID, "ASSIGNMENT_CREATE", assignment.ID, assignment)
	return assignment, nil
}

// UpdateSchedule rewrites an assignment's window, weekdays, time ranges and
// rate override.
func (s *AssignmentService) UpdateSchedule(ctx context.Context, id string, req dto.UpdateAssignmentRequest, actor *models.JWTClaims) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, appErrors.ErrInvalidRequest.Status, "invalid assignment payload")
	}

	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAssignmentNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	startDate, endDate, err := parseAssignmentWindow(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	assignment.StartDate = startDate
	assignment.EndDate = endDate
	assignment.HourlyRateCents = req.HourlyRateCents
	assignment.AllowedWeekdays = pq.StringArray(req.AllowedWeekdays)
	assignment.AllowedTimeRanges = models.TimeRanges(req.AllowedTimeRanges)

	if err := s.assignments.UpdateSchedule(ctx, assignment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAssignmentNotFound
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}

	s.emitAudit(ctx, actor.UserID, "ASSIGNMENT_UPDATE", id, assignment)
	return assignment, nil
}

// Deactivate retires an assignment. Assignments are never deleted.
func (s *AssignmentService) Deactivate(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := s.assignments.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrAssignmentNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate assignment")
	}
	s.emitAudit(ctx, actor.UserID, "ASSIGNMENT_DEACTIVATE", id, nil)
	return nil
}

// Get loads one assignment.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAssignmentNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// List returns assignments. Tutors are scoped to their own.
func (s *AssignmentService) List(ctx context.Context, tutorID string, actor *models.JWTClaims) ([]models.Assignment, error) {
	if actor.Role == models.RoleTutor {
		if actor.TutorID == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "tutor account has no tutor link")
		}
		tutorID = *actor.TutorID
	}
	assignments, err := s.assignments.List(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

func parseAssignmentWindow(startRaw, endRaw string) (time.Time, *time.Time, error) {
	startDate, err := time.ParseInLocation(dto.PeriodDateLayout, startRaw, time.UTC)
	if err != nil {
		return time.Time{}, nil, appErrors.Clone(appErrors.ErrInvalidRequest, "start_date must be formatted YYYY-MM-DD")
	}
	var endDate *time.Time
	if endRaw != "" {
		parsed, err := time.ParseInLocation(dto.PeriodDateLayout, endRaw, time.UTC)
		if err != nil {
			return time.Time{}, nil, appErrors.Clone(appErrors.ErrInvalidRequest, "end_date must be formatted YYYY-MM-DD")
		}
		if parsed.Before(startDate) {
			return time.Time{}, nil, appErrors.Clone(appErrors.ErrInvalidRequest, "end_date must not precede start_date")
		}
		endDate = &parsed
	}
	return startDate, endDate, nil
}

func (s *AssignmentService) emitAudit(ctx context.Context, userID, action, assignmentID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "assignment",
		ResourceID: &assignmentID,
	}
	if payload != nil {
		log.NewValues, _ = json.Marshal(payload)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record assignment audit log", zap.Error(err))
	}
}
