package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-ops-api/internal/dto"
	"github.com/noah-isme/tutor-ops-api/internal/models"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
)

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// IntegrityService recomputes, from the ledger alone, what a period's invoices
// should contain and diffs that against what was actually generated. Read
// only; it reports drift, it never repairs it.
type IntegrityService struct {
	sessions    approvedSessionReader
	adjustments adjustmentReader
	assignments assignmentReader
	tutors      tutorBatchReader
	invoices    invoiceStore
	cache       reportCache
	cacheTTL    time.Duration
	logger      *zap.Logger
	metrics     *MetricsService
}

// NewIntegrityService constructs the service.
func NewIntegrityService(
	sessions approvedSessionReader,
	adjustments adjustmentReader,
	assignments assignmentReader,
	tutors tutorBatchReader,
	invoices invoiceStore,
	cache reportCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *IntegrityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &IntegrityService{
		sessions:    sessions,
		adjustments: adjustments,
		assignments: assignments,
		tutors:      tutors,
		invoices:    invoices,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// WithMetrics attaches an optional metrics sink.
func (s *IntegrityService) WithMetrics(m *MetricsService) *IntegrityService {
	s.metrics = m
	return s
}

// Report reconciles one period. Results are cached briefly since the report
// walks every approved session and invoice line in the period.
func (s *IntegrityService) Report(ctx context.Context, periodStartRaw string) (*dto.IntegrityReport, error) {
	periodStart, err := parsePeriodStart(periodStartRaw)
	if err != nil {
		return nil, err
	}
	periodKey := periodStart.Format(dto.PeriodDateLayout)
	cacheKey := fmt.Sprintf("integrity:%s", periodKey)

	if s.cache != nil {
		var cached dto.IntegrityReport
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("integrity cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	report, err := s.reconcile(ctx, periodStart, periodKey)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, report, s.cacheTTL); err != nil {
			s.logger.Warn("integrity cache write failed", zap.Error(err))
		}
	}
	return report, nil
}

func (s *IntegrityService) reconcile(ctx context.Context, periodStart time.Time, periodKey string) (*dto.IntegrityReport, error) {
	sessions, err := s.sessions.ListApprovedInPeriod(ctx, periodStart, periodStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approved sessions")
	}
	invoices, err := s.invoices.ListByPeriod(ctx, periodStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	adjustments, err := s.adjustments.ListAdjustments(ctx, periodStart, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list adjustments")
	}

	linedSessions := make(map[string]struct{})
	for _, invoice := range invoices {
		for _, line := range invoice.Lines {
			linedSessions[line.LogicalSessionID] = struct{}{}
		}
	}

	adjustmentTotals := make(map[string]int64)
	for _, adjustment := range adjustments {
		adjustmentTotals[adjustment.TutorID] += adjustment.SignedAmountCents()
	}

	report := &dto.IntegrityReport{
		PeriodStart:            periodKey,
		MissingInvoiceLines:    []dto.MissingInvoiceLine{},
		InvoiceTotalMismatches: []dto.InvoiceTotalMismatch{},
		GeneratedAt:            time.Now().UTC(),
	}

	missing, err := s.findMissingLines(ctx, sessions, linedSessions)
	if err != nil {
		return nil, err
	}
	report.MissingInvoiceLines = missing

	for _, invoice := range invoices {
		var lineSum int64
		for _, line := range invoice.Lines {
			lineSum += line.AmountCents
		}
		computed := lineSum + adjustmentTotals[invoice.TutorID]
		if computed != invoice.TotalAmountCents {
			report.InvoiceTotalMismatches = append(report.InvoiceTotalMismatches, dto.InvoiceTotalMismatch{
				InvoiceID:          invoice.ID,
				InvoiceNumber:      invoice.InvoiceNumber,
				TutorID:            invoice.TutorID,
				StoredTotalCents:   invoice.TotalAmountCents,
				ComputedTotalCents: computed,
			})
		}
	}

	if !report.Clean() {
		s.logger.Warn("integrity drift detected",
			zap.String("period_start", periodKey),
			zap.Int("missing_lines", len(report.MissingInvoiceLines)),
			zap.Int("total_mismatches", len(report.InvoiceTotalMismatches)),
		)
	}
	return report, nil
}

// findMissingLines prices every approved session that no invoice line covers,
// using the same effective-rate rule as the generator.
func (s *IntegrityService) findMissingLines(ctx context.Context, sessions []models.SessionSnapshot, lined map[string]struct{}) ([]dto.MissingInvoiceLine, error) {
	missing := []dto.MissingInvoiceLine{}

	var uncovered []models.SessionSnapshot
	tutorIDs := []string{}
	seenTutors := make(map[string]struct{})
	for _, session := range sessions {
		if _, ok := lined[session.LogicalSessionID]; ok {
			continue
		}
		uncovered = append(uncovered, session)
		if _, ok := seenTutors[session.TutorID]; !ok {
			seenTutors[session.TutorID] = struct{}{}
			tutorIDs = append(tutorIDs, session.TutorID)
		}
	}
	if len(uncovered) == 0 {
		return missing, nil
	}

	tutors, err := s.tutors.FindByIDs(ctx, tutorIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutors")
	}

	rateCache := make(map[string]*int64)
	for _, session := range uncovered {
		rate := tutors[session.TutorID].DefaultHourlyRateCents
		override, ok := rateCache[session.AssignmentID]
		if !ok {
			assignment, err := s.assignments.FindByID(ctx, session.AssignmentID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment rate")
			}
			if assignment != nil {
				override = assignment.HourlyRateCents
			}
			rateCache[session.AssignmentID] = override
		}
		if override != nil {
			rate = *override
		}
		minutes := session.DurationMinutes()
		missing = append(missing, dto.MissingInvoiceLine{
			TutorID:             session.TutorID,
			LogicalSessionID:    session.LogicalSessionID,
			Minutes:             minutes,
			ExpectedAmountCents: lineAmountCents(minutes, rate),
		})
	}
	return missing, nil
}
