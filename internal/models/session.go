package models

import "time"

// SessionStatus captures the lifecycle of a logical session.
type SessionStatus string

const (
	SessionStatusDraft     SessionStatus = "DRAFT"
	SessionStatusSubmitted SessionStatus = "SUBMITTED"
	SessionStatusApproved  SessionStatus = "APPROVED"
	SessionStatusRejected  SessionStatus = "REJECTED"
	SessionStatusVoid      SessionStatus = "VOID"
)

// SessionAction enumerates ledger event kinds.
type SessionAction string

const (
	SessionActionCreate SessionAction = "create"
	SessionActionAmend  SessionAction = "amend"
	SessionActionVoid   SessionAction = "void"
)

// LogicalSession is the stable identity of one tutoring session across its
// whole edit history.
type LogicalSession struct {
	ID           string    `db:"id" json:"id"`
	TutorID      string    `db:"tutor_id" json:"tutor_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SessionEvent is one immutable, versioned entry in a session's ledger.
// Events are append-only; versions are gapless and strictly increasing.
type SessionEvent struct {
	ID               string        `db:"id" json:"id"`
	LogicalSessionID string        `db:"logical_session_id" json:"logical_session_id"`
	Version          int           `db:"version" json:"version"`
	Action           SessionAction `db:"action" json:"action"`
	StartsAt         time.Time     `db:"starts_at" json:"starts_at"`
	EndsAt           time.Time     `db:"ends_at" json:"ends_at"`
	Notes            string        `db:"notes" json:"notes"`
	ActorUserID      string        `db:"actor_user_id" json:"actor_user_id"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}

// SessionSnapshot is the materialized result of replaying a session's event
// list. It is a cache of the ledger, rewritten atomically with every appended
// event, and the only mutable row per logical session.
type SessionSnapshot struct {
	LogicalSessionID string        `db:"logical_session_id" json:"logical_session_id"`
	TutorID          string        `db:"tutor_id" json:"tutor_id"`
	StudentID        string        `db:"student_id" json:"student_id"`
	AssignmentID     string        `db:"assignment_id" json:"assignment_id"`
	StartsAt         time.Time     `db:"starts_at" json:"starts_at"`
	EndsAt           time.Time     `db:"ends_at" json:"ends_at"`
	Notes            string        `db:"notes" json:"notes"`
	Status           SessionStatus `db:"status" json:"status"`
	CurrentVersion   int           `db:"current_version" json:"current_version"`
	CurrentEventID   string        `db:"current_event_id" json:"current_event_id"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// DurationMinutes returns the snapshot's billed length.
func (s *SessionSnapshot) DurationMinutes() int {
	return int(s.EndsAt.Sub(s.StartsAt).Minutes())
}

// SessionFilter constrains session listing queries.
type SessionFilter struct {
	TutorID     string
	Status      []SessionStatus
	PeriodStart *time.Time
	PeriodEnd   *time.Time
}
