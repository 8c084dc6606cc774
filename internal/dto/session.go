package dto

import (
	"time"

	"github.com/noah-isme/tutor-ops-api/internal/models"
)

// CreateSessionRequest logs a new tutoring session into the ledger.
type CreateSessionRequest struct {
	AssignmentID string    `json:"assignment_id" validate:"required"`
	StudentID    string    `json:"student_id" validate:"required"`
	StartsAt     time.Time `json:"starts_at" validate:"required"`
	EndsAt       time.Time `json:"ends_at" validate:"required"`
	Notes        string    `json:"notes" validate:"max=2000"`
}

// AmendSessionRequest rewrites the mutable fields of a draft session.
type AmendSessionRequest struct {
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	Notes    string    `json:"notes" validate:"max=2000"`
}

// RejectSessionRequest carries the optional reviewer reason.
type RejectSessionRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// BulkReviewRequest approves or rejects a batch of submitted sessions.
type BulkReviewRequest struct {
	SessionIDs []string `json:"session_ids" validate:"required,min=1,dive,required"`
	Reason     string   `json:"reason" validate:"max=1000"`
}

// Bulk review outcomes. A batch never fails as a whole; each id reports its
// own outcome.
const (
	BulkOutcomeApproved = "approved"
	BulkOutcomeRejected = "rejected"
	BulkOutcomeSkipped  = "skipped"
)

// BulkReviewResult is the per-id outcome of a bulk approve/reject call.
type BulkReviewResult struct {
	SessionID string `json:"session_id"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
}

// SessionMutationResponse returns the fresh snapshot together with the ledger
// event the mutation appended.
type SessionMutationResponse struct {
	Session *models.SessionSnapshot `json:"session"`
	Event   *models.SessionEvent    `json:"event"`
}

// SessionQuery mirrors supported listing filters.
type SessionQuery struct {
	Status      string
	PeriodStart string
	TutorID     string
}
