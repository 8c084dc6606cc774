// Package schedule holds the pure calendar rules shared by the session ledger
// and the payroll engine: assignment-window checks, duration math and the
// canonical Monday-start pay period.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/tutor-ops-api/internal/models"
)

// DurationMinutes returns the whole minutes between start and end. Sub-minute
// remainders truncate toward zero: billing is whole-minute and a partial
// minute never counts in the tutor's favor.
func DurationMinutes(start, end time.Time) int {
	return int(end.Sub(start).Minutes())
}

// PeriodStart canonicalizes any instant to the Monday date of its week, at
// midnight UTC. All period-keyed state (locks, adjustments, invoices) uses
// this value as its key.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// PeriodRange returns the inclusive Monday..Sunday date range containing t.
func PeriodRange(t time.Time) (start, end time.Time) {
	start = PeriodStart(t)
	return start, start.AddDate(0, 0, 6)
}

// PeriodEndExclusive returns the first instant after the period containing t,
// i.e. the following Monday. Useful for half-open interval queries.
func PeriodEndExclusive(t time.Time) time.Time {
	return PeriodStart(t).AddDate(0, 0, 7)
}

// WithinAssignmentWindow reports whether a session interval is permitted by
// the assignment: its date inside [StartDate, EndDate] (open-ended without an
// end date), its weekday in the allowed set, and its time of day fully
// contained in at least one allowed range. Empty weekday or range sets do not
// restrict. Pure; both bounds must fall on the same calendar day.
func WithinAssignmentWindow(a *models.Assignment, start, end time.Time) bool {
	start = start.UTC()
	end = end.UTC()

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(dateOnly(a.StartDate)) {
		return false
	}
	if a.EndDate != nil && day.After(dateOnly(*a.EndDate)) {
		return false
	}

	if len(a.AllowedWeekdays) > 0 && !containsWeekday(a.AllowedWeekdays, start.Weekday()) {
		return false
	}

	startMin := minutesOfDay(start)
	endMin := minutesOfDay(end)
	if !sameDay(start, end) {
		// Midnight-crossing sessions can never fit a same-day range.
		if len(a.AllowedTimeRanges) > 0 {
			return false
		}
		return true
	}

	if len(a.AllowedTimeRanges) == 0 {
		return true
	}
	for _, r := range a.AllowedTimeRanges {
		rs, okS := parseClock(r.Start)
		re, okE := parseClock(r.End)
		if !okS || !okE {
			continue
		}
		if startMin >= rs && endMin <= re {
			return true
		}
	}
	return false
}

// WeekdayName maps time.Weekday onto the uppercase names stored on assignments.
func WeekdayName(d time.Weekday) string {
	return strings.ToUpper(d.String())
}

func containsWeekday(allowed []string, d time.Weekday) bool {
	name := WeekdayName(d)
	for _, w := range allowed {
		if strings.EqualFold(strings.TrimSpace(w), name) {
			return true
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// parseClock parses "15:04" into minutes since midnight; "24:00" is accepted
// as the end-of-day bound.
func parseClock(raw string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, false
	}
	return h*60 + m, true
}
