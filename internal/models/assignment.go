package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// TimeRange is an allowed time-of-day window, both bounds in "15:04" form.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TimeRanges is stored as a JSONB array on the assignments table.
type TimeRanges []TimeRange

// Value implements driver.Valuer.
func (t TimeRanges) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner.
func (t *TimeRanges) Scan(src interface{}) error {
	if src == nil {
		*t = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("time ranges: unsupported source %T", src)
	}
	return json.Unmarshal(raw, t)
}

// Assignment binds a tutor to a student for a subject within a validity
// window, an allowed weekday set and allowed time-of-day ranges. Identity is
// immutable; scheduling fields can change; rows are deactivated, never deleted.
type Assignment struct {
	ID                string         `db:"id" json:"id"`
	TutorID           string         `db:"tutor_id" json:"tutor_id"`
	StudentID         string         `db:"student_id" json:"student_id"`
	Subject           string         `db:"subject" json:"subject"`
	StartDate         time.Time      `db:"start_date" json:"start_date"`
	EndDate           *time.Time     `db:"end_date" json:"end_date,omitempty"`
	HourlyRateCents   *int64         `db:"hourly_rate_cents" json:"hourly_rate_cents,omitempty"`
	AllowedWeekdays   pq.StringArray `db:"allowed_weekdays" json:"allowed_weekdays"`
	AllowedTimeRanges TimeRanges     `db:"allowed_time_ranges" json:"allowed_time_ranges"`
	Active            bool           `db:"active" json:"active"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}
