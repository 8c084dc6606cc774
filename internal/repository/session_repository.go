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

// ErrStatusConflict is returned when a locked re-check finds the snapshot in
// a state the operation does not allow. The caller maps it onto the
// operation-specific domain error.
var ErrStatusConflict = errors.New("session status conflict")

// SessionRepository persists the append-only session ledger and its derived
// snapshot projection. Every mutation appends an event and rewrites the
// snapshot inside one transaction; events are never updated.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSessionParams holds the validated inputs for a version-1 create event.
type CreateSessionParams struct {
	TutorID      string
	StudentID    string
	AssignmentID string
	StartsAt     time.Time
	EndsAt       time.Time
	Notes        string
	ActorUserID  string
}

// AppendEventParams drives an amend or void append against an existing ledger.
type AppendEventParams struct {
	LogicalSessionID string
	Action           models.SessionAction
	StartsAt         time.Time
	EndsAt           time.Time
	Notes            string
	NewStatus        models.SessionStatus
	AllowedStatuses  []models.SessionStatus
	ActorUserID      string
}

// HasOverlap reports whether the tutor already has a non-void session whose
// [starts_at, ends_at) interval intersects the candidate. Boundary-touching
// intervals do not overlap. This pre-check only produces a friendlier error;
// the exclusion constraint is the guard that holds under concurrency.
func (r *SessionRepository) HasOverlap(ctx context.Context, tutorID string, startsAt, endsAt time.Time, excludeSessionID string) (bool, error) {
	const query = `
SELECT 1 FROM session_snapshots
WHERE tutor_id = $1 AND status <> 'VOID'
  AND starts_at < $3 AND ends_at > $2
  AND ($4 = '' OR logical_session_id::text <> $4)
LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, tutorID, startsAt, endsAt, excludeSessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check session overlap: %w", err)
	}
	return true, nil
}

// CreateWithEvent atomically inserts the logical session, its version-1
// create event and the initial DRAFT snapshot.
func (r *SessionRepository) CreateWithEvent(ctx context.Context, params CreateSessionParams) (snapshot *models.SessionSnapshot, event *models.SessionEvent, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin session create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	sessionID := uuid.NewString()
	eventID := uuid.NewString()

	const insertSession = `INSERT INTO logical_sessions (id, tutor_id, student_id, assignment_id, created_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.ExecContext(ctx, insertSession, sessionID, params.TutorID, params.StudentID, params.AssignmentID, now); err != nil {
		return nil, nil, translateConstraint(err)
	}

	event = &models.SessionEvent{
		ID:               eventID,
		LogicalSessionID: sessionID,
		Version:          1,
		Action:           models.SessionActionCreate,
		StartsAt:         params.StartsAt,
		EndsAt:           params.EndsAt,
		Notes:            params.Notes,
		ActorUserID:      params.ActorUserID,
		CreatedAt:        now,
	}
	if err = insertEvent(ctx, tx, event); err != nil {
		return nil, nil, err
	}

	snapshot = &models.SessionSnapshot{
		LogicalSessionID: sessionID,
		TutorID:          params.TutorID,
		StudentID:        params.StudentID,
		AssignmentID:     params.AssignmentID,
		StartsAt:         params.StartsAt,
		EndsAt:           params.EndsAt,
		Notes:            params.Notes,
		Status:           models.SessionStatusDraft,
		CurrentVersion:   1,
		CurrentEventID:   eventID,
		UpdatedAt:        now,
	}
	const insertSnapshot = `INSERT INTO session_snapshots
(logical_session_id, tutor_id, student_id, assignment_id, starts_at, ends_at, notes, status, current_version, current_event_id, updated_at)
VALUES (:logical_session_id, :tutor_id, :student_id, :assignment_id, :starts_at, :ends_at, :notes, :status, :current_version, :current_event_id, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertSnapshot, snapshot); err != nil {
		return nil, nil, translateConstraint(err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit session create: %w", err)
	}
	return snapshot, event, nil
}

// AppendEvent locks the snapshot row, re-checks its status under the lock and,
// if still allowed, appends the next event and re-projects the snapshot. Two
// concurrent mutations against the same logical session serialize here; the
// loser observes the committed state and gets ErrStatusConflict.
func (r *SessionRepository) AppendEvent(ctx context.Context, params AppendEventParams) (snapshot *models.SessionSnapshot, event *models.SessionEvent, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin session append: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.SessionSnapshot
	const lockQuery = `SELECT * FROM session_snapshots WHERE logical_session_id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, params.LogicalSessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, sql.ErrNoRows
		}
		return nil, nil, fmt.Errorf("lock session snapshot: %w", err)
	}

	if !statusAllowed(current.Status, params.AllowedStatuses) {
		err = ErrStatusConflict
		return nil, nil, err
	}

	now := time.Now().UTC()
	event = &models.SessionEvent{
		ID:               uuid.NewString(),
		LogicalSessionID: current.LogicalSessionID,
		Version:          current.CurrentVersion + 1,
		Action:           params.Action,
		StartsAt:         params.StartsAt,
		EndsAt:           params.EndsAt,
		Notes:            params.Notes,
		ActorUserID:      params.ActorUserID,
		CreatedAt:        now,
	}
	if err = insertEvent(ctx, tx, event); err != nil {
		return nil, nil, err
	}

	const updateSnapshot = `UPDATE session_snapshots
SET starts_at = $1, ends_at = $2, notes = $3, status = $4, current_version = $5, current_event_id = $6, updated_at = $7
WHERE logical_session_id = $8`
	if _, err = tx.ExecContext(ctx, updateSnapshot,
		params.StartsAt, params.EndsAt, params.Notes, params.NewStatus,
		event.Version, event.ID, now, current.LogicalSessionID,
	); err != nil {
		return nil, nil, translateConstraint(err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit session append: %w", err)
	}

	snapshot = &current
	snapshot.StartsAt = params.StartsAt
	snapshot.EndsAt = params.EndsAt
	snapshot.Notes = params.Notes
	snapshot.Status = params.NewStatus
	snapshot.CurrentVersion = event.Version
	snapshot.CurrentEventID = event.ID
	snapshot.UpdatedAt = now
	return snapshot, event, nil
}

// TransitionStatus flips the workflow status without touching ledger fields,
// using the same lock-then-recheck discipline as AppendEvent.
func (r *SessionRepository) TransitionStatus(ctx context.Context, logicalSessionID string, allowed []models.SessionStatus, to models.SessionStatus) (snapshot *models.SessionSnapshot, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.SessionSnapshot
	const lockQuery = `SELECT * FROM session_snapshots WHERE logical_session_id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, logicalSessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock session snapshot: %w", err)
	}

	if !statusAllowed(current.Status, allowed) {
		err = ErrStatusConflict
		return nil, err
	}

	now := time.Now().UTC()
	const updateStatus = `UPDATE session_snapshots SET status = $1, updated_at = $2 WHERE logical_session_id = $3`
	if _, err = tx.ExecContext(ctx, updateStatus, to, now, logicalSessionID); err != nil {
		return nil, translateConstraint(err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status transition: %w", err)
	}

	current.Status = to
	current.UpdatedAt = now
	return &current, nil
}

// FindSnapshot loads the current projection of a logical session.
func (r *SessionRepository) FindSnapshot(ctx context.Context, logicalSessionID string) (*models.SessionSnapshot, error) {
	const query = `SELECT * FROM session_snapshots WHERE logical_session_id = $1`
	var snapshot models.SessionSnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, logicalSessionID); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListEvents returns a session's full ledger in version order.
func (r *SessionRepository) ListEvents(ctx context.Context, logicalSessionID string) ([]models.SessionEvent, error) {
	const query = `SELECT * FROM session_events WHERE logical_session_id = $1 ORDER BY version ASC`
	var events []models.SessionEvent
	if err := r.db.SelectContext(ctx, &events, query, logicalSessionID); err != nil {
		return nil, fmt.Errorf("list session events: %w", err)
	}
	return events, nil
}

// List returns snapshots matching the filter, newest first.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionSnapshot, error) {
	query := `SELECT * FROM session_snapshots WHERE 1=1`
	args := []interface{}{}

	if filter.TutorID != "" {
		query += " AND tutor_id = ?"
		args = append(args, filter.TutorID)
	}
	if len(filter.Status) > 0 {
		query += " AND status IN (?)"
		args = append(args, filter.Status)
	}
	if filter.PeriodStart != nil && filter.PeriodEnd != nil {
		query += " AND starts_at >= ? AND starts_at < ?"
		args = append(args, *filter.PeriodStart, *filter.PeriodEnd)
	}
	query += " ORDER BY starts_at DESC"

	query, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expand session filter: %w", err)
	}
	query = r.db.Rebind(query)

	var snapshots []models.SessionSnapshot
	if err := r.db.SelectContext(ctx, &snapshots, query, expanded...); err != nil {
		return nil, fmt.Errorf("list session snapshots: %w", err)
	}
	return snapshots, nil
}

// CountSubmittedInPeriod counts SUBMITTED sessions dated inside the half-open
// period range. A non-zero count blocks the period lock.
func (r *SessionRepository) CountSubmittedInPeriod(ctx context.Context, periodStart, periodEnd time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM session_snapshots WHERE status = 'SUBMITTED' AND starts_at >= $1 AND starts_at < $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, periodStart, periodEnd); err != nil {
		return 0, fmt.Errorf("count submitted sessions: %w", err)
	}
	return count, nil
}

// ListApprovedInPeriod returns approved snapshots in the half-open period
// range, grouped by tutor for deterministic invoice assembly.
func (r *SessionRepository) ListApprovedInPeriod(ctx context.Context, periodStart, periodEnd time.Time) ([]models.SessionSnapshot, error) {
	const query = `SELECT * FROM session_snapshots
WHERE status = 'APPROVED' AND starts_at >= $1 AND starts_at < $2
ORDER BY tutor_id ASC, starts_at ASC`
	var snapshots []models.SessionSnapshot
	if err := r.db.SelectContext(ctx, &snapshots, query, periodStart, periodEnd); err != nil {
		return nil, fmt.Errorf("list approved sessions: %w", err)
	}
	return snapshots, nil
}

func insertEvent(ctx context.Context, tx *sqlx.Tx, event *models.SessionEvent) error {
	const query = `INSERT INTO session_events
(id, logical_session_id, version, action, starts_at, ends_at, notes, actor_user_id, created_at)
VALUES (:id, :logical_session_id, :version, :action, :starts_at, :ends_at, :notes, :actor_user_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
		return translateConstraint(err)
	}
	return nil
}

func statusAllowed(current models.SessionStatus, allowed []models.SessionStatus) bool {
	for _, s := range allowed {
		if current == s {
			return true
		}
	}
	return false
}
