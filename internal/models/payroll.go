package models

import (
	"fmt"
	"time"
)

// AdjustmentType distinguishes manual bonuses from penalties.
type AdjustmentType string

const (
	AdjustmentTypeBonus   AdjustmentType = "BONUS"
	AdjustmentTypePenalty AdjustmentType = "PENALTY"
)

// InvoiceStatus is ISSUED until an invoice is marked paid; PAID is terminal.
type InvoiceStatus string

const (
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
	InvoiceStatusPaid   InvoiceStatus = "PAID"
)

// PayPeriodLock marks a canonical Monday-start week as closed for mutation.
// Locking is one-way; there is no unlock.
type PayPeriodLock struct {
	PeriodStart time.Time `db:"period_start" json:"period_start"`
	LockedBy    string    `db:"locked_by" json:"locked_by"`
	LockedAt    time.Time `db:"locked_at" json:"locked_at"`
}

// Adjustment is a manual bonus or penalty applied to a tutor's period total.
// AmountCents is always positive; the type carries the sign.
type Adjustment struct {
	ID          string         `db:"id" json:"id"`
	TutorID     string         `db:"tutor_id" json:"tutor_id"`
	PeriodStart time.Time      `db:"period_start" json:"period_start"`
	Type        AdjustmentType `db:"type" json:"type"`
	AmountCents int64          `db:"amount_cents" json:"amount_cents"`
	Reason      string         `db:"reason" json:"reason"`
	CreatedBy   string         `db:"created_by" json:"created_by"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// SignedAmountCents returns the amount with the penalty sign applied.
func (a *Adjustment) SignedAmountCents() int64 {
	if a.Type == AdjustmentTypePenalty {
		return -a.AmountCents
	}
	return a.AmountCents
}

// Invoice is one settlement per (tutor, pay period), produced only by the
// payroll generator.
type Invoice struct {
	ID               string        `db:"id" json:"id"`
	InvoiceNumber    string        `db:"invoice_number" json:"invoice_number"`
	TutorID          string        `db:"tutor_id" json:"tutor_id"`
	PeriodStart      time.Time     `db:"period_start" json:"period_start"`
	PeriodEnd        time.Time     `db:"period_end" json:"period_end"`
	TotalAmountCents int64         `db:"total_amount_cents" json:"total_amount_cents"`
	Status           InvoiceStatus `db:"status" json:"status"`
	GeneratedBy      string        `db:"generated_by" json:"generated_by"`
	GeneratedAt      time.Time     `db:"generated_at" json:"generated_at"`
	PaidAt           *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
}

// InvoiceLine bills one approved session.
type InvoiceLine struct {
	ID               string    `db:"id" json:"id"`
	InvoiceID        string    `db:"invoice_id" json:"invoice_id"`
	LogicalSessionID string    `db:"logical_session_id" json:"logical_session_id"`
	Description      string    `db:"description" json:"description"`
	Minutes          int       `db:"minutes" json:"minutes"`
	RateCents        int64     `db:"rate_cents" json:"rate_cents"`
	AmountCents      int64     `db:"amount_cents" json:"amount_cents"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// InvoiceDetail bundles an invoice with its lines and the tutor name.
type InvoiceDetail struct {
	Invoice
	TutorName string        `db:"tutor_name" json:"tutor_name"`
	Lines     []InvoiceLine `json:"lines"`
}

// FormatCents renders integer minor units as a decimal amount, e.g. 60000 -> "600.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
