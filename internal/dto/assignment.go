package dto

import "github.com/noah-isme/tutor-ops-api/internal/models"

// CreateAssignmentRequest binds a tutor to a student for a subject.
type CreateAssignmentRequest struct {
	TutorID           string             `json:"tutor_id" validate:"required"`
	StudentID         string             `json:"student_id" validate:"required"`
	Subject           string             `json:"subject" validate:"required,max=200"`
	StartDate         string             `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate           string             `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	HourlyRateCents   *int64             `json:"hourly_rate_cents" validate:"omitempty,gte=0"`
	AllowedWeekdays   []string           `json:"allowed_weekdays" validate:"required,min=1,dive,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY"`
	AllowedTimeRanges []models.TimeRange `json:"allowed_time_ranges" validate:"required,min=1"`
}

// UpdateAssignmentRequest changes the scheduling fields of an assignment.
// Identity (tutor, student, subject) is immutable.
type UpdateAssignmentRequest struct {
	StartDate         string             `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate           string             `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	HourlyRateCents   *int64             `json:"hourly_rate_cents" validate:"omitempty,gte=0"`
	AllowedWeekdays   []string           `json:"allowed_weekdays" validate:"required,min=1,dive,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY"`
	AllowedTimeRanges []models.TimeRange `json:"allowed_time_ranges" validate:"required,min=1"`
}
