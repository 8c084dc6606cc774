package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutor-ops-api/internal/models"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
)

// InvoiceRepository persists generated invoices and their lines. Invoices are
// insert-only apart from the ISSUED -> PAID flip.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// ExistsForPeriod reports whether any invoice was already generated for the
// period. This is the period-level idempotency check.
func (r *InvoiceRepository) ExistsForPeriod(ctx context.Context, periodStart time.Time) (bool, error) {
	const query = `SELECT 1 FROM invoices WHERE period_start = $1 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, periodStart); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check invoices for period: %w", err)
	}
	return true, nil
}

// CreateBatch inserts a period's invoices and lines in one transaction. A
// concurrent generator losing the race hits the (tutor_id, period_start)
// unique index and surfaces invoices_already_generated instead of
// double-billing.
func (r *InvoiceRepository) CreateBatch(ctx context.Context, invoices []models.InvoiceDetail) (err error) {
	if len(invoices) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin invoice batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertInvoice = `INSERT INTO invoices
(id, invoice_number, tutor_id, period_start, period_end, total_amount_cents, status, generated_by, generated_at)
VALUES (:id, :invoice_number, :tutor_id, :period_start, :period_end, :total_amount_cents, :status, :generated_by, :generated_at)`
	const insertLine = `INSERT INTO invoice_lines
(id, invoice_id, logical_session_id, description, minutes, rate_cents, amount_cents, created_at)
VALUES (:id, :invoice_id, :logical_session_id, :description, :minutes, :rate_cents, :amount_cents, :created_at)`

	for i := range invoices {
		invoice := &invoices[i]
		if _, err = tx.NamedExecContext(ctx, insertInvoice, invoice.Invoice); err != nil {
			return translateGeneration(err)
		}
		for j := range invoice.Lines {
			line := &invoice.Lines[j]
			if line.ID == "" {
				line.ID = uuid.NewString()
			}
			line.InvoiceID = invoice.ID
			if line.CreatedAt.IsZero() {
				line.CreatedAt = invoice.GeneratedAt
			}
			if _, err = tx.NamedExecContext(ctx, insertLine, line); err != nil {
				return translateConstraint(err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit invoice batch: %w", err)
	}
	return nil
}

// FindByID loads one invoice without its lines.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	const query = `SELECT * FROM invoices WHERE id = $1`
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListByPeriod returns a period's invoices with tutor names and lines.
func (r *InvoiceRepository) ListByPeriod(ctx context.Context, periodStart time.Time) ([]models.InvoiceDetail, error) {
	const query = `
SELECT i.id, i.invoice_number, i.tutor_id, i.period_start, i.period_end, i.total_amount_cents,
       i.status, i.generated_by, i.generated_at, i.paid_at, t.full_name AS tutor_name
FROM invoices i
JOIN tutors t ON t.id = i.tutor_id
WHERE i.period_start = $1
ORDER BY t.full_name ASC`
	var invoices []models.InvoiceDetail
	if err := r.db.SelectContext(ctx, &invoices, query, periodStart); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	if len(invoices) == 0 {
		return invoices, nil
	}

	ids := make([]string, len(invoices))
	index := make(map[string]*models.InvoiceDetail, len(invoices))
	for i := range invoices {
		ids[i] = invoices[i].ID
		index[invoices[i].ID] = &invoices[i]
	}

	lineQuery, args, err := sqlx.In(`SELECT * FROM invoice_lines WHERE invoice_id IN (?) ORDER BY created_at ASC, id ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("expand invoice ids: %w", err)
	}
	lineQuery = r.db.Rebind(lineQuery)

	var lines []models.InvoiceLine
	if err := r.db.SelectContext(ctx, &lines, lineQuery, args...); err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	for _, line := range lines {
		if detail, ok := index[line.InvoiceID]; ok {
			detail.Lines = append(detail.Lines, line)
		}
	}
	return invoices, nil
}

// MarkPaid flips an ISSUED invoice to PAID. Returns ErrStatusConflict when the
// invoice exists but is not ISSUED.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (*models.Invoice, error) {
	const query = `UPDATE invoices SET status = 'PAID', paid_at = $1 WHERE id = $2 AND status = 'ISSUED'`
	result, err := r.db.ExecContext(ctx, query, paidAt, id)
	if err != nil {
		return nil, fmt.Errorf("mark invoice paid: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check paid invoice rows: %w", err)
	}
	if affected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStatusConflict
	}
	return r.FindByID(ctx, id)
}

func translateGeneration(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return appErrors.ErrInvoicesGenerated
	}
	return translateConstraint(err)
}
