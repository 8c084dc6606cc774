package dto

import "time"

// PeriodDateLayout is the wire format for pay-period keys (canonical Monday).
const PeriodDateLayout = "2006-01-02"

// LockPeriodRequest closes a pay period for mutation.
type LockPeriodRequest struct {
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
}

// CreateAdjustmentRequest records a manual bonus or penalty for a tutor/period.
type CreateAdjustmentRequest struct {
	TutorID     string `json:"tutor_id" validate:"required"`
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
	Type        string `json:"type" validate:"required,oneof=BONUS PENALTY"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Reason      string `json:"reason" validate:"required,max=1000"`
}

// GeneratePayrollRequest triggers invoice generation for a week.
type GeneratePayrollRequest struct {
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
}

// MissingInvoiceLine flags an approved session with no corresponding line.
type MissingInvoiceLine struct {
	TutorID             string `json:"tutor_id"`
	LogicalSessionID    string `json:"logical_session_id"`
	Minutes             int    `json:"minutes"`
	ExpectedAmountCents int64  `json:"expected_amount_cents"`
}

// InvoiceTotalMismatch flags an invoice whose stored total drifted from
// sum(lines) + sum(adjustments).
type InvoiceTotalMismatch struct {
	InvoiceID          string `json:"invoice_id"`
	InvoiceNumber      string `json:"invoice_number"`
	TutorID            string `json:"tutor_id"`
	StoredTotalCents   int64  `json:"stored_total_cents"`
	ComputedTotalCents int64  `json:"computed_total_cents"`
}

// IntegrityReport is the result of reconciling the ledger against generated
// invoices for one period. Read-only; used for audit, not auto-repair.
type IntegrityReport struct {
	PeriodStart            string                 `json:"period_start"`
	MissingInvoiceLines    []MissingInvoiceLine   `json:"missing_invoice_lines"`
	InvoiceTotalMismatches []InvoiceTotalMismatch `json:"invoice_total_mismatches"`
	GeneratedAt            time.Time              `json:"generated_at"`
}

// Clean reports whether the reconciliation found no drift.
func (r *IntegrityReport) Clean() bool {
	return len(r.MissingInvoiceLines) == 0 && len(r.InvoiceTotalMismatches) == 0
}
