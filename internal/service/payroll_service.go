package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-ops-api/internal/dto"
	"github.com/noah-isme/tutor-ops-api/internal/models"
	"github.com/noah-isme/tutor-ops-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
	"github.com/noah-isme/tutor-ops-api/pkg/export"
)

type approvedSessionReader interface {
	ListApprovedInPeriod(ctx context.Context, periodStart, periodEnd time.Time) ([]models.SessionSnapshot, error)
}

type adjustmentReader interface {
	ListAdjustments(ctx context.Context, periodStart time.Time, tutorID string) ([]models.Adjustment, error)
}

type tutorBatchReader interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Tutor, error)
}

type invoiceStore interface {
	ExistsForPeriod(ctx context.Context, periodStart time.Time) (bool, error)
	CreateBatch(ctx context.Context, invoices []models.InvoiceDetail) error
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	ListByPeriod(ctx context.Context, periodStart time.Time) ([]models.InvoiceDetail, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (*models.Invoice, error)
}

// PayrollService turns a week's approved sessions plus manual adjustments into
// invoices, exactly once per period.
type PayrollService struct {
	sessions    approvedSessionReader
	adjustments adjustmentReader
	assignments assignmentReader
	tutors      tutorBatchReader
	invoices    invoiceStore
	audit       auditLogger
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
}

// NewPayrollService constructs the service.
func NewPayrollService(
	sessions approvedSessionReader,
	adjustments adjustmentReader,
	assignments assignmentReader,
	tutors tutorBatchReader,
	invoices invoiceStore,
	audit auditLogger,
	validate *validator.Validate,
	logger *zap.Logger,
) *PayrollService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PayrollService{
		sessions:    sessions,
		adjustments: adjustments,
		assignments: assignments,
		tutors:      tutors,
		invoices:    invoices,
		audit:       audit,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		validator:   validate,
		logger:      logger,
	}
}

// WithMetrics attaches an optional metrics sink.
func (s *PayrollService) WithMetrics(m *MetricsService) *PayrollService {
	s.metrics = m
	return s
}

// csvHeaders is the flat export layout, one row per invoice line.
var csvHeaders = []string{
	"invoice_number", "period_start", "period_end", "tutor_name",
	"session_id", "description", "minutes", "rate", "amount", "total_amount",
}

// GenerateWeek builds one invoice per tutor with at least one approved session
// in the period. Calling it twice for the same period fails with
// invoices_already_generated; it never duplicates an invoice.
func (s *PayrollService) GenerateWeek(ctx context.Context, req dto.GeneratePayrollRequest, actor *models.JWTClaims) ([]models.InvoiceDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, appErrors.ErrInvalidRequest.Status, "invalid payroll payload")
	}
	periodStart, err := parsePeriodStart(req.PeriodStart)
	if err != nil {
		return nil, err
	}
	periodEnd := periodStart.AddDate(0, 0, 6)

	exists, err := s.invoices.ExistsForPeriod(ctx, periodStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing invoices")
	}
	if exists {
		return nil, appErrors.ErrInvoicesGenerated
	}

	sessions, err := s.sessions.ListApprovedInPeriod(ctx, periodStart, periodStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approved sessions")
	}
	adjustments, err := s.adjustments.ListAdjustments(ctx, periodStart, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list adjustments")
	}

	details, err := s.assembleInvoices(ctx, periodStart, periodEnd, sessions, adjustments, actor.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.invoices.CreateBatch(ctx, details); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist invoices")
	}

	for _, detail := range details {
		s.metrics.RecordInvoice(detail.TotalAmountCents)
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionPayrollGenerate, "pay_period", req.PeriodStart, map[string]interface{}{
		"invoices": len(details),
	})
	s.logger.Info("payroll generated",
		zap.String("period_start", periodStart.Format(dto.PeriodDateLayout)),
		zap.Int("invoices", len(details)),
		zap.Int("sessions", len(sessions)),
	)
	return details, nil
}

// assembleInvoices groups approved sessions per tutor and prices each one.
func (s *PayrollService) assembleInvoices(ctx context.Context, periodStart, periodEnd time.Time, sessions []models.SessionSnapshot, adjustments []models.Adjustment, generatedBy string) ([]models.InvoiceDetail, error) {
	byTutor := make(map[string][]models.SessionSnapshot)
	tutorOrder := []string{}
	for _, session := range sessions {
		if _, seen := byTutor[session.TutorID]; !seen {
			tutorOrder = append(tutorOrder, session.TutorID)
		}
		byTutor[session.TutorID] = append(byTutor[session.TutorID], session)
	}

	adjustmentsByTutor := make(map[string][]models.Adjustment)
	for _, adjustment := range adjustments {
		adjustmentsByTutor[adjustment.TutorID] = append(adjustmentsByTutor[adjustment.TutorID], adjustment)
	}
	for tutorID := range adjustmentsByTutor {
		if _, invoiced := byTutor[tutorID]; !invoiced {
			// Adjustments without sessions stay stranded until a later
			// period with sessions.
			s.logger.Warn("adjustment without approved sessions produces no invoice",
				zap.String("tutor_id", tutorID),
				zap.String("period_start", periodStart.Format(dto.PeriodDateLayout)),
			)
		}
	}

	tutors, err := s.tutors.FindByIDs(ctx, tutorOrder)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutors")
	}

	rateCache := make(map[string]*int64)
	generatedAt := time.Now().UTC()
	details := make([]models.InvoiceDetail, 0, len(tutorOrder))

	for _, tutorID := range tutorOrder {
		tutor, ok := tutors[tutorID]
		if !ok {
			return nil, appErrors.Wrap(fmt.Errorf("tutor %s missing", tutorID), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "approved session references unknown tutor")
		}

		lines := make([]models.InvoiceLine, 0, len(byTutor[tutorID]))
		var lineTotal int64
		for _, session := range byTutor[tutorID] {
			rate, err := s.effectiveRate(ctx, rateCache, session.AssignmentID, tutor.DefaultHourlyRateCents)
			if err != nil {
				return nil, err
			}
			minutes := session.DurationMinutes()
			amount := lineAmountCents(minutes, rate)
			lines = append(lines, models.InvoiceLine{
				LogicalSessionID: session.LogicalSessionID,
				Description: fmt.Sprintf("%s %s-%s tutoring session",
					session.StartsAt.Format("2006-01-02"),
					session.StartsAt.Format("15:04"),
					session.EndsAt.Format("15:04")),
				Minutes:     minutes,
				RateCents:   rate,
				AmountCents: amount,
			})
			lineTotal += amount
		}

		total := lineTotal
		for _, adjustment := range adjustmentsByTutor[tutorID] {
			total += adjustment.SignedAmountCents()
		}

		details = append(details, models.InvoiceDetail{
			Invoice: models.Invoice{
				ID:               uuid.NewString(),
				InvoiceNumber:    invoiceNumber(periodStart, tutorID),
				TutorID:          tutorID,
				PeriodStart:      periodStart,
				PeriodEnd:        periodEnd,
				TotalAmountCents: total,
				Status:           models.InvoiceStatusIssued,
				GeneratedBy:      generatedBy,
				GeneratedAt:      generatedAt,
			},
			TutorName: tutor.FullName,
			Lines:     lines,
		})
	}
	return details, nil
}

func (s *PayrollService) effectiveRate(ctx context.Context, cache map[string]*int64, assignmentID string, defaultRate int64) (int64, error) {
	override, ok := cache[assignmentID]
	if !ok {
		assignment, err := s.assignments.FindByID(ctx, assignmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Assignment rows are never deleted; treat a gap as no override.
				cache[assignmentID] = nil
				return defaultRate, nil
			}
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment rate")
		}
		override = assignment.HourlyRateCents
		cache[assignmentID] = override
	}
	if override != nil {
		return *override, nil
	}
	return defaultRate, nil
}

// ListInvoices returns a period's invoices with their lines.
func (s *PayrollService) ListInvoices(ctx context.Context, periodStartRaw string) ([]models.InvoiceDetail, error) {
	periodStart, err := parsePeriodStart(periodStartRaw)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.ListByPeriod(ctx, periodStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	return invoices, nil
}

// MarkPaid flips an invoice from ISSUED to PAID; there is no reversal.
func (s *PayrollService) MarkPaid(ctx context.Context, invoiceID string, actor *models.JWTClaims) (*models.Invoice, error) {
	invoice, err := s.invoices.MarkPaid(ctx, invoiceID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, appErrors.ErrInvoiceNotIssued
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvoiceNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark invoice paid")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionInvoicePaid, "invoice", invoiceID, invoice)
	return invoice, nil
}

// ExportCSV renders a period's invoice lines as a flat CSV, one row per line.
func (s *PayrollService) ExportCSV(ctx context.Context, periodStartRaw string) ([]byte, string, error) {
	dataset, periodKey, err := s.exportDataset(ctx, periodStartRaw)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return payload, fmt.Sprintf("payroll-%s.csv", periodKey), nil
}

// ExportPDF renders the same dataset as a printable table.
func (s *PayrollService) ExportPDF(ctx context.Context, periodStartRaw string) ([]byte, string, error) {
	dataset, periodKey, err := s.exportDataset(ctx, periodStartRaw)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.pdf.Render(dataset, fmt.Sprintf("Payroll %s", periodKey))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return payload, fmt.Sprintf("payroll-%s.pdf", periodKey), nil
}

func (s *PayrollService) exportDataset(ctx context.Context, periodStartRaw string) (export.Dataset, string, error) {
	periodStart, err := parsePeriodStart(periodStartRaw)
	if err != nil {
		return export.Dataset{}, "", err
	}
	invoices, err := s.invoices.ListByPeriod(ctx, periodStart)
	if err != nil {
		return export.Dataset{}, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}

	rows := make([]map[string]string, 0, len(invoices))
	for _, invoice := range invoices {
		for _, line := range invoice.Lines {
			rows = append(rows, map[string]string{
				"invoice_number": invoice.InvoiceNumber,
				"period_start":   invoice.PeriodStart.Format(dto.PeriodDateLayout),
				"period_end":     invoice.PeriodEnd.Format(dto.PeriodDateLayout),
				"tutor_name":     invoice.TutorName,
				"session_id":     line.LogicalSessionID,
				"description":    line.Description,
				"minutes":        fmt.Sprintf("%d", line.Minutes),
				"rate":           models.FormatCents(line.RateCents),
				"amount":         models.FormatCents(line.AmountCents),
				"total_amount":   models.FormatCents(invoice.TotalAmountCents),
			})
		}
	}
	return export.Dataset{Headers: csvHeaders, Rows: rows}, periodStart.Format(dto.PeriodDateLayout), nil
}

// lineAmountCents prices minutes at an hourly rate, rounding half up to the
// nearest minor unit.
func lineAmountCents(minutes int, rateCents int64) int64 {
	return (int64(minutes)*rateCents + 30) / 60
}

// invoiceNumber derives the deterministic per-tutor invoice number for a period.
func invoiceNumber(periodStart time.Time, tutorID string) string {
	prefix := tutorID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("INV-%s-%s", periodStart.Format(dto.PeriodDateLayout), prefix)
}

func (s *PayrollService) emitAudit(ctx context.Context, userID, action, resource, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
	}
	if payload != nil {
		log.NewValues, _ = json.Marshal(payload)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record payroll audit log", zap.Error(err))
	}
}
