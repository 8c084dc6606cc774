package models

import "time"

// Tutor represents a payable tutor with a default hourly rate in cents.
type Tutor struct {
	ID                     string    `db:"id" json:"id"`
	FullName               string    `db:"full_name" json:"full_name"`
	Email                  string    `db:"email" json:"email"`
	DefaultHourlyRateCents int64     `db:"default_hourly_rate_cents" json:"default_hourly_rate_cents"`
	Active                 bool      `db:"active" json:"active"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// Student is a minimal roster entry referenced by assignments and sessions.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
