package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for the session ledger and payroll domain.
var (
	ErrInvalidRequest         = New("invalid_request", http.StatusBadRequest, "request payload failed validation")
	ErrInvalidDuration        = New("invalid_duration_minutes", http.StatusBadRequest, "session duration is outside the allowed range")
	ErrEndBeforeStart         = New("end_must_be_after_start", http.StatusBadRequest, "session end must be after its start")
	ErrStudentMismatch        = New("student_mismatch", http.StatusUnprocessableEntity, "student does not match the assignment")
	ErrStudentNotAssigned     = New("student_not_assigned_to_tutor", http.StatusUnprocessableEntity, "no active assignment links this student to the tutor")
	ErrOutsideWindow          = New("outside_assignment_window", http.StatusUnprocessableEntity, "session falls outside the assignment window")
	ErrFutureSession          = New("cannot_log_future_sessions", http.StatusUnprocessableEntity, "sessions cannot be logged in the future")
	ErrOverlappingSession     = New("overlapping_session", http.StatusConflict, "session overlaps an existing active session")
	ErrConstraintViolation    = New("constraint_violation", http.StatusConflict, "storage constraint rejected the change")
	ErrSessionNotFound        = New("session_not_found", http.StatusNotFound, "session not found")
	ErrSessionNotActive       = New("session_not_active", http.StatusConflict, "session is no longer in an editable state")
	ErrOnlyDraftEditable      = New("only_draft_editable", http.StatusConflict, "only draft sessions can be edited or submitted")
	ErrOnlySubmittedApprove   = New("only_submitted_approvable", http.StatusConflict, "only submitted sessions can be approved")
	ErrOnlySubmittedReject    = New("only_submitted_rejectable", http.StatusConflict, "only submitted sessions can be rejected")
	ErrPayPeriodLocked        = New("pay_period_locked", http.StatusConflict, "pay period is locked")
	ErrPendingSessions        = New("pending_sessions", http.StatusConflict, "period still has submitted sessions awaiting review")
	ErrInvoicesGenerated      = New("invoices_already_generated", http.StatusConflict, "invoices were already generated for this period")
	ErrInvoiceNotFound        = New("invoice_not_found", http.StatusNotFound, "invoice not found")
	ErrInvoiceNotIssued       = New("invoice_not_issued", http.StatusConflict, "only issued invoices can be marked paid")
	ErrAssignmentNotFound     = New("assignment_not_found", http.StatusNotFound, "assignment not found")
	ErrAdjustmentNotFound     = New("adjustment_not_found", http.StatusNotFound, "adjustment not found")
	ErrInvalidCredentials     = New("invalid_credentials", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount        = New("account_inactive", http.StatusForbidden, "account is inactive")
	ErrUnauthorized           = New("unauthorized", http.StatusUnauthorized, "unauthorized")
	ErrForbidden              = New("forbidden", http.StatusForbidden, "forbidden")
	ErrNotFound               = New("not_found", http.StatusNotFound, "resource not found")
	ErrInternal               = New("internal_error", http.StatusInternalServerError, "internal server error")
)

// ErrCacheMiss signals a cache lookup found nothing. Internal only; it never
// reaches the response envelope.
var ErrCacheMiss = errors.New("cache miss")

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
