package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-ops-api/internal/dto"
	"github.com/noah-isme/tutor-ops-api/internal/models"
	"github.com/noah-isme/tutor-ops-api/internal/repository"
	"github.com/noah-isme/tutor-ops-api/internal/schedule"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
)

// ledgerStub is an in-memory stand-in for the session repository shared by the
// ledger, approval and payroll tests.
type ledgerStub struct {
	snapshots map[string]*models.SessionSnapshot
	events    map[string][]models.SessionEvent
	nextID    int
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{
		snapshots: make(map[string]*models.SessionSnapshot),
		events:    make(map[string][]models.SessionEvent),
	}
}

func (l *ledgerStub) seed(snapshot models.SessionSnapshot) {
	copy := snapshot
	l.snapshots[snapshot.LogicalSessionID] = &copy
}

func (l *ledgerStub) HasOverlap(ctx context.Context, tutorID string, startsAt, endsAt time.Time, excludeSessionID string) (bool, error) {
	for id, snapshot := range l.snapshots {
		if id == excludeSessionID || snapshot.TutorID != tutorID || snapshot.Status == models.SessionStatusVoid {
			continue
		}
		if snapshot.StartsAt.Before(endsAt) && snapshot.EndsAt.After(startsAt) {
			return true, nil
		}
	}
	return false, nil
}

func (l *ledgerStub) CreateWithEvent(ctx context.Context, params repository.CreateSessionParams) (*models.SessionSnapshot, *models.SessionEvent, error) {
	l.nextID++
	sessionID := fmt.Sprintf("session-%d", l.nextID)
	event := models.SessionEvent{
		ID:               fmt.Sprintf("event-%d-1", l.nextID),
		LogicalSessionID: sessionID,
		Version:          1,
		Action:           models.SessionActionCreate,
		StartsAt:         params.StartsAt,
		EndsAt:           params.EndsAt,
		Notes:            params.Notes,
		ActorUserID:      params.ActorUserID,
		CreatedAt:        time.Now().UTC(),
	}
	snapshot := models.SessionSnapshot{
		LogicalSessionID: sessionID,
		TutorID:          params.TutorID,
		StudentID:        params.StudentID,
		AssignmentID:     params.AssignmentID,
		StartsAt:         params.StartsAt,
		EndsAt:           params.EndsAt,
		Notes:            params.Notes,
		Status:           models.SessionStatusDraft,
		CurrentVersion:   1,
		CurrentEventID:   event.ID,
		UpdatedAt:        event.CreatedAt,
	}
	l.snapshots[sessionID] = &snapshot
	l.events[sessionID] = append(l.events[sessionID], event)
	result := snapshot
	return &result, &event, nil
}

func (l *ledgerStub) AppendEvent(ctx context.Context, params repository.AppendEventParams) (*models.SessionSnapshot, *models.SessionEvent, error) {
	snapshot, ok := l.snapshots[params.LogicalSessionID]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	allowed := false
	for _, status := range params.AllowedStatuses {
		if snapshot.Status == status {
			allowed = true
		}
	}
	if !allowed {
		return nil, nil, repository.ErrStatusConflict
	}
	event := models.SessionEvent{
		ID:               fmt.Sprintf("event-%s-%d", params.LogicalSessionID, snapshot.CurrentVersion+1),
		LogicalSessionID: params.LogicalSessionID,
		Version:          snapshot.CurrentVersion + 1,
		Action:           params.Action,
		StartsAt:         params.StartsAt,
		EndsAt:           params.EndsAt,
		Notes:            params.Notes,
		ActorUserID:      params.ActorUserID,
		CreatedAt:        time.Now().UTC(),
	}
	snapshot.StartsAt = params.StartsAt
	snapshot.EndsAt = params.EndsAt
	snapshot.Notes = params.Notes
	snapshot.Status = params.NewStatus
	snapshot.CurrentVersion = event.Version
	snapshot.CurrentEventID = event.ID
	snapshot.UpdatedAt = event.CreatedAt
	l.events[params.LogicalSessionID] = append(l.events[params.LogicalSessionID], event)
	result := *snapshot
	return &result, &event, nil
}

func (l *ledgerStub) TransitionStatus(ctx context.Context, logicalSessionID string, allowed []models.SessionStatus, to models.SessionStatus) (*models.SessionSnapshot, error) {
	snapshot, ok := l.snapshots[logicalSessionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	permitted := false
	for _, status := range allowed {
		if snapshot.Status == status {
			permitted = true
		}
	}
	if !permitted {
		return nil, repository.ErrStatusConflict
	}
	snapshot.Status = to
	snapshot.UpdatedAt = time.Now().UTC()
	result := *snapshot
	return &result, nil
}

func (l *ledgerStub) FindSnapshot(ctx context.Context, logicalSessionID string) (*models.SessionSnapshot, error) {
	snapshot, ok := l.snapshots[logicalSessionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	result := *snapshot
	return &result, nil
}

func (l *ledgerStub) ListEvents(ctx context.Context, logicalSessionID string) ([]models.SessionEvent, error) {
	return l.events[logicalSessionID], nil
}

func (l *ledgerStub) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionSnapshot, error) {
	result := []models.SessionSnapshot{}
	for _, snapshot := range l.snapshots {
		if filter.TutorID != "" && snapshot.TutorID != filter.TutorID {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, status := range filter.Status {
				if snapshot.Status == status {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		result = append(result, *snapshot)
	}
	return result, nil
}

func (l *ledgerStub) CountSubmittedInPeriod(ctx context.Context, periodStart, periodEnd time.Time) (int, error) {
	count := 0
	for _, snapshot := range l.snapshots {
		if snapshot.Status != models.SessionStatusSubmitted {
			continue
		}
		if !snapshot.StartsAt.Before(periodStart) && snapshot.StartsAt.Before(periodEnd) {
			count++
		}
	}
	return count, nil
}

func (l *ledgerStub) ListApprovedInPeriod(ctx context.Context, periodStart, periodEnd time.Time) ([]models.SessionSnapshot, error) {
	result := []models.SessionSnapshot{}
	for _, snapshot := range l.snapshots {
		if snapshot.Status != models.SessionStatusApproved {
			continue
		}
		if !snapshot.StartsAt.Before(periodStart) && snapshot.StartsAt.Before(periodEnd) {
			result = append(result, *snapshot)
		}
	}
	return result, nil
}

type assignmentStub struct {
	assignments map[string]*models.Assignment
}

func newAssignmentStub(assignments ...*models.Assignment) *assignmentStub {
	stub := &assignmentStub{assignments: make(map[string]*models.Assignment)}
	for _, a := range assignments {
		stub.assignments[a.ID] = a
	}
	return stub
}

func (a *assignmentStub) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, ok := a.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *assignment
	return &copy, nil
}

type lockStub struct {
	locked map[string]bool
}

func newLockStub() *lockStub {
	return &lockStub{locked: make(map[string]bool)}
}

func (l *lockStub) lock(periodStart time.Time) {
	l.locked[periodStart.Format("2006-01-02")] = true
}

func (l *lockStub) IsLocked(ctx context.Context, periodStart time.Time) (bool, error) {
	return l.locked[periodStart.Format("2006-01-02")], nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func tutorClaims(tutorID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-" + tutorID, Role: models.RoleTutor, TutorID: &tutorID}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func openAssignment(id, tutorID, studentID string) *models.Assignment {
	return &models.Assignment{
		ID:              id,
		TutorID:         tutorID,
		StudentID:       studentID,
		Subject:         "Mathematics",
		StartDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		AllowedWeekdays: pq.StringArray{},
		Active:          true,
	}
}

func newSessionServiceForTest(ledger *ledgerStub, assignments *assignmentStub, locks *lockStub, audit *auditStub) *SessionService {
	svc := NewSessionService(ledger, assignments, locks, audit, nil, nil, SessionRules{MinMinutes: 15, MaxMinutes: 480})
	svc.now = func() time.Time { return time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestSessionServiceCreate(t *testing.T) {
	ledger := newLedgerStub()
	audit := &auditStub{}
	assignments := newAssignmentStub(openAssignment("assignment-1", "tutor-1", "student-1"))
	svc := newSessionServiceForTest(ledger, assignments, newLockStub(), audit)

	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	result, err := svc.Create(context.Background(), dto.CreateSessionRequest{
		AssignmentID: "assignment-1",
		StudentID:    "student-1",
		StartsAt:     startsAt,
		EndsAt:       startsAt.Add(2 * time.Hour),
		Notes:        "algebra review",
	}, tutorClaims("tutor-1"))
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusDraft, result.Session.Status)
	require.Equal(t, 1, result.Session.CurrentVersion)
	require.Equal(t, 1, result.Event.Version)
	require.Equal(t, models.SessionActionCreate, result.Event.Action)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionSessionCreate, audit.logs[0].Action)
}

func TestSessionServiceCreateIntervalValidation(t *testing.T) {
	assignments := newAssignmentStub(openAssignment("assignment-1", "tutor-1", "student-1"))
	svc := newSessionServiceForTest(newLedgerStub(), assignments, newLockStub(), &auditStub{})
	actor := tutorClaims("tutor-1")
	base := dto.CreateSessionRequest{AssignmentID: "assignment-1", StudentID: "student-1"}

	cases := []struct {
		name     string
		startsAt time.Time
		endsAt   time.Time
		want     *appErrors.Error
	}{
		{
			name:     "end before start",
			startsAt: time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC),
			endsAt:   time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC),
			want:     appErrors.ErrEndBeforeStart,
		},
		{
			name:     "future dated",
			startsAt: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
			endsAt:   time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC),
			want:     appErrors.ErrFutureSession,
		},
		{
			name:     "too short",
			startsAt: time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC),
			endsAt:   time.Date(2026, 1, 7, 9, 10, 0, 0, time.UTC),
			want:     appErrors.ErrInvalidDuration,
		},
		{
			name:     "too long",
			startsAt: time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC),
			endsAt:   time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC),
			want:     appErrors.ErrInvalidDuration,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			req.StartsAt = tc.startsAt
			req.EndsAt = tc.endsAt
			_, err := svc.Create(context.Background(), req, actor)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSessionServiceCreateAssignmentChecks(t *testing.T) {
	inactive := openAssignment("assignment-2", "tutor-1", "student-1")
	inactive.Active = false
	windowed := openAssignment("assignment-3", "tutor-1", "student-1")
	windowed.AllowedWeekdays = pq.StringArray{"MONDAY"}
	assignments := newAssignmentStub(openAssignment("assignment-1", "tutor-1", "student-1"), inactive, windowed)
	svc := newSessionServiceForTest(newLedgerStub(), assignments, newLockStub(), &auditStub{})
	actor := tutorClaims("tutor-1")

	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC) // a Wednesday
	endsAt := startsAt.Add(time.Hour)

	_, err := svc.Create(context.Background(), dto.CreateSessionRequest{
		AssignmentID: "assignment-1", StudentID: "student-2", StartsAt: startsAt, EndsAt: endsAt,
	}, actor)
	require.ErrorIs(t, err, appErrors.ErrStudentMismatch)

	_, err = svc.Create(context.Background(), dto.CreateSessionRequest{
		AssignmentID: "assignment-2", StudentID: "student-1", StartsAt: startsAt, EndsAt: endsAt,
	}, actor)
	require.ErrorIs(t, err, appErrors.ErrStudentNotAssigned)

	_, err = svc.Create(context.Background(), dto.CreateSessionRequest{
		AssignmentID: "missing", StudentID: "student-1", StartsAt: startsAt, EndsAt: endsAt,
	}, actor)
	require.ErrorIs(t, err, appErrors.ErrStudentNotAssigned)

	_, err = svc.Create(context.Background(), dto.CreateSessionRequest{
		AssignmentID: "assignment-3", StudentID: "student-1", StartsAt: startsAt, EndsAt: endsAt,
	}, actor)
	require.ErrorIs(t, err, appErrors.ErrOutsideWindow)

	_, err = svc.Create(context.Background(), dto.CreateSessionRequest{
		AssignmentID: "assignment-1", StudentID: "student-1", StartsAt: startsAt, EndsAt: endsAt,
	}, tutorClaims("tutor-2"))
	require.ErrorIs(t, err, appErrors.ErrStudentNotAssigned)
}

func TestSessionServiceCreateOverlap(t *testing.T) {
	ledger := newLedgerStub()
	assignments := newAssignmentStub(openAssignment("assignment-1", "tutor-1", "student-1"))
	svc := newSessionServiceForTest(ledger, assignments, newLockStub(), &auditStub{})
	actor := tutorClaims("tutor-1")
	day := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)

	createAt := func(startHour, startMin, endHour, endMin int) error {
		_, err := svc.Create(context.Background(), dto.CreateSessionRequest{
			AssignmentID: "assignment-1",
			StudentID:    "student-1",
			StartsAt:     day.Add(time.Duration(startHour)*time.Hour + time.Duration(startMin)*time.Minute),
			EndsAt:       day.Add(time.Duration(endHour)*time.Hour + time.Duration(endMin)*time.Minute),
		}, actor)
		return err
	}

	require.NoError(t, createAt(9, 0, 11, 0))
	// Back-to-back sessions share only a boundary point and are allowed.
	require.NoError(t, createAt(11, 0, 12, 0))
	// A contained interval overlaps.
	require.ErrorIs(t, createAt(9, 30, 10, 0), appErrors.ErrOverlappingSession)
}

func TestSessionServiceAmend(t *testing.T) {
	ledger := newLedgerStub()
	audit := &auditStub{}
	assignments := newAssignmentStub(openAssignment("assignment-1", "tutor-1", "student-1"))
	locks := newLockStub()
	svc := newSessionServiceForTest(ledger, assignments, locks, audit)
	actor := tutorClaims("tutor-1")

	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	created, err := svc.Create(context.Background(), dto.CreateSessionRequest{
		AssignmentID: "assignment-1", StudentID: "student-1", StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour),
	}, actor)
	require.NoError(t, err)
	sessionID := created.Session.LogicalSessionID

	amended, err := svc.Amend(context.Background(), sessionID, dto.AmendSessionRequest{
		StartsAt: startsAt, EndsAt: startsAt.Add(90 * time.Minute), Notes: "ran long",
	}, actor)
	require.NoError(t, err)
	require.Equal(t, 2, amended.Session.CurrentVersion)
	require.Equal(t, models.SessionActionAmend, amended.Event.Action)
	require.Equal(t, models.SessionStatusDraft, amended.Session.Status)

	// Amending its own interval is not an overlap.
	_, err = svc.Amend(context.Background(), sessionID, dto.AmendSessionRequest{
		StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour),
	}, actor)
	require.NoError(t, err)

	// Foreign tutors cannot see the session at all.
	_, err = svc.Amend(context.Background(), sessionID, dto.AmendSessionRequest{
		StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour),
	}, tutorClaims("tutor-2"))
	require.ErrorIs(t, err, appErrors.ErrSessionNotFound)

	ledger.snapshots[sessionID].Status = models.SessionStatusSubmitted
	_, err = svc.Amend(context.Background(), sessionID, dto.AmendSessionRequest{
		StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour),
	}, actor)
	require.ErrorIs(t, err, appErrors.ErrSessionNotActive)
}

func TestSessionServiceAmendLockedPeriod(t *testing.T) {
	ledger := newLedgerStub()
	assignments := newAssignmentStub(openAssignment("assignment-1", "tutor-1", "student-1"))
	locks := newLockStub()
	svc := newSessionServiceForTest(ledger, assignments, locks, &auditStub{})
	actor := tutorClaims("tutor-1")

	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	created, err := svc.Create(context.Background(), dto.CreateSessionRequest{
		AssignmentID: "assignment-1", StudentID: "student-1", StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour),
	}, actor)
	require.NoError(t, err)

	locks.lock(schedule.PeriodStart(startsAt))
	_, err = svc.Amend(context.Background(), created.Session.LogicalSessionID, dto.AmendSessionRequest{
		StartsAt: startsAt, EndsAt: startsAt.Add(2 * time.Hour),
	}, actor)
	require.ErrorIs(t, err, appErrors.ErrPayPeriodLocked)

	_, err = svc.Void(context.Background(), created.Session.LogicalSessionID, actor)
	require.ErrorIs(t, err, appErrors.ErrPayPeriodLocked)
}

func TestSessionServiceVoid(t *testing.T) {
	ledger := newLedgerStub()
	audit := &auditStub{}
	assignments := newAssignmentStub(openAssignment("assignment-1", "tutor-1", "student-1"))
	svc := newSessionServiceForTest(ledger, assignments, newLockStub(), audit)
	actor := tutorClaims("tutor-1")

	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	created, err := svc.Create(context.Background(), dto.CreateSessionRequest{
		AssignmentID: "assignment-1", StudentID: "student-1", StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour),
	}, actor)
	require.NoError(t, err)
	sessionID := created.Session.LogicalSessionID

	voided, err := svc.Void(context.Background(), sessionID, actor)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusVoid, voided.Session.Status)
	require.Equal(t, 2, voided.Session.CurrentVersion)

	// Voided sessions leave the overlap check.
	_, err = svc.Create(context.Background(), dto.CreateSessionRequest{
		AssignmentID: "assignment-1", StudentID: "student-1", StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour),
	}, actor)
	require.NoError(t, err)

	// Voiding twice fails.
	_, err = svc.Void(context.Background(), sessionID, actor)
	require.ErrorIs(t, err, appErrors.ErrSessionNotActive)
}

func TestSessionServiceReplayReproducesSnapshot(t *testing.T) {
	ledger := newLedgerStub()
	assignments := newAssignmentStub(openAssignment("assignment-1", "tutor-1", "student-1"))
	svc := newSessionServiceForTest(ledger, assignments, newLockStub(), &auditStub{})
	actor := tutorClaims("tutor-1")

	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	created, err := svc.Create(context.Background(), dto.CreateSessionRequest{
		AssignmentID: "assignment-1", StudentID: "student-1",
		StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour), Notes: "algebra",
	}, actor)
	require.NoError(t, err)
	sessionID := created.Session.LogicalSessionID

	_, err = svc.Amend(context.Background(), sessionID, dto.AmendSessionRequest{
		StartsAt: startsAt, EndsAt: startsAt.Add(90 * time.Minute), Notes: "ran long",
	}, actor)
	require.NoError(t, err)
	_, err = svc.Amend(context.Background(), sessionID, dto.AmendSessionRequest{
		StartsAt: startsAt.Add(15 * time.Minute), EndsAt: startsAt.Add(90 * time.Minute), Notes: "late start",
	}, actor)
	require.NoError(t, err)
	_, err = svc.Void(context.Background(), sessionID, actor)
	require.NoError(t, err)

	events, err := svc.ListEvents(context.Background(), sessionID, actor)
	require.NoError(t, err)
	require.Len(t, events, 4)

	// Folding the event list in version order must land exactly on the stored
	// snapshot: same interval, notes, status, version, head event and clock.
	replayed := models.SessionSnapshot{
		LogicalSessionID: sessionID,
		TutorID:          created.Session.TutorID,
		StudentID:        created.Session.StudentID,
		AssignmentID:     created.Session.AssignmentID,
		Status:           models.SessionStatusDraft,
	}
	for i, event := range events {
		require.Equal(t, i+1, event.Version)
		replayed.StartsAt = event.StartsAt
		replayed.EndsAt = event.EndsAt
		replayed.Notes = event.Notes
		if event.Action == models.SessionActionVoid {
			replayed.Status = models.SessionStatusVoid
		}
		replayed.CurrentVersion = event.Version
		replayed.CurrentEventID = event.ID
		replayed.UpdatedAt = event.CreatedAt
	}

	snapshot, err := svc.Get(context.Background(), sessionID, actor)
	require.NoError(t, err)
	require.Equal(t, replayed, *snapshot)
	require.Equal(t, events[len(events)-1].Version, snapshot.CurrentVersion)
}

func TestSessionServiceListScopesTutor(t *testing.T) {
	ledger := newLedgerStub()
	startsAt := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	ledger.seed(models.SessionSnapshot{LogicalSessionID: "session-a", TutorID: "tutor-1", Status: models.SessionStatusDraft, StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour)})
	ledger.seed(models.SessionSnapshot{LogicalSessionID: "session-b", TutorID: "tutor-2", Status: models.SessionStatusDraft, StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour)})
	svc := newSessionServiceForTest(ledger, newAssignmentStub(), newLockStub(), &auditStub{})

	list, err := svc.List(context.Background(), dto.SessionQuery{TutorID: "tutor-2"}, tutorClaims("tutor-1"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "session-a", list[0].LogicalSessionID)
}
