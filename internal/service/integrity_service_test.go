package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-ops-api/internal/dto"
	"github.com/noah-isme/tutor-ops-api/internal/models"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
)

type reportCacheStub struct {
	entries map[string][]byte
	hits    int
	sets    int
}

func newReportCacheStub() *reportCacheStub {
	return &reportCacheStub{entries: make(map[string][]byte)}
}

func (c *reportCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	payload, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	c.hits++
	return json.Unmarshal(payload, dest)
}

func (c *reportCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = payload
	c.sets++
	return nil
}

func newIntegrityServiceForTest(ledger *ledgerStub, periods *payPeriodStoreStub, invoices *invoiceStoreStub, cache *reportCacheStub) *IntegrityService {
	tutors := newTutorStub(models.Tutor{ID: "tutor-1", FullName: "Ani Wijaya", DefaultHourlyRateCents: 30000})
	assignments := newAssignmentStub(openAssignment("assignment-1", "tutor-1", "student-1"))
	var reports reportCache
	if cache != nil {
		reports = cache
	}
	return NewIntegrityService(ledger, periods, assignments, tutors, invoices, reports, 0, nil)
}

func TestIntegrityServiceCleanPeriod(t *testing.T) {
	ledger := newLedgerStub()
	seedApprovedWeek(ledger)
	invoices := &invoiceStoreStub{}
	payroll := newPayrollServiceForTest(ledger, newPayPeriodStoreStub(), invoices, &auditStub{})
	_, err := payroll.GenerateWeek(context.Background(), dto.GeneratePayrollRequest{PeriodStart: "2026-02-02"}, adminClaims())
	require.NoError(t, err)

	svc := newIntegrityServiceForTest(ledger, newPayPeriodStoreStub(), invoices, nil)
	report, err := svc.Report(context.Background(), "2026-02-02")
	require.NoError(t, err)
	require.True(t, report.Clean())
	require.Equal(t, "2026-02-02", report.PeriodStart)
	require.Empty(t, report.MissingInvoiceLines)
	require.Empty(t, report.InvoiceTotalMismatches)
}

func TestIntegrityServiceMissingLine(t *testing.T) {
	ledger := newLedgerStub()
	seedApprovedWeek(ledger)
	invoices := &invoiceStoreStub{}
	payroll := newPayrollServiceForTest(ledger, newPayPeriodStoreStub(), invoices, &auditStub{})
	_, err := payroll.GenerateWeek(context.Background(), dto.GeneratePayrollRequest{PeriodStart: "2026-02-02"}, adminClaims())
	require.NoError(t, err)

	// A session approved after generation has no invoice line.
	seedSession(ledger, "session-late", "tutor-1", models.SessionStatusApproved, time.Date(2026, 2, 6, 10, 0, 0, 0, time.UTC))

	svc := newIntegrityServiceForTest(ledger, newPayPeriodStoreStub(), invoices, nil)
	report, err := svc.Report(context.Background(), "2026-02-02")
	require.NoError(t, err)
	require.False(t, report.Clean())
	require.Len(t, report.MissingInvoiceLines, 1)

	missing := report.MissingInvoiceLines[0]
	require.Equal(t, "session-late", missing.LogicalSessionID)
	require.Equal(t, "tutor-1", missing.TutorID)
	require.Equal(t, 60, missing.Minutes)
	require.Equal(t, int64(30000), missing.ExpectedAmountCents)
}

func TestIntegrityServiceTotalMismatch(t *testing.T) {
	ledger := newLedgerStub()
	seedApprovedWeek(ledger)
	invoices := &invoiceStoreStub{}
	periods := newPayPeriodStoreStub()
	payroll := newPayrollServiceForTest(ledger, periods, invoices, &auditStub{})
	_, err := payroll.GenerateWeek(context.Background(), dto.GeneratePayrollRequest{PeriodStart: "2026-02-02"}, adminClaims())
	require.NoError(t, err)

	// An adjustment added after generation makes the stored total stale.
	require.NoError(t, periods.CreateAdjustment(context.Background(), &models.Adjustment{
		TutorID:     "tutor-1",
		PeriodStart: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		Type:        models.AdjustmentTypePenalty,
		AmountCents: 5000,
		Reason:      "late cancellation",
	}))

	svc := newIntegrityServiceForTest(ledger, periods, invoices, nil)
	report, err := svc.Report(context.Background(), "2026-02-02")
	require.NoError(t, err)
	require.Len(t, report.InvoiceTotalMismatches, 1)

	mismatch := report.InvoiceTotalMismatches[0]
	require.Equal(t, "tutor-1", mismatch.TutorID)
	require.Equal(t, int64(60000), mismatch.StoredTotalCents)
	require.Equal(t, int64(55000), mismatch.ComputedTotalCents)
}

func TestIntegrityServiceCachesReport(t *testing.T) {
	ledger := newLedgerStub()
	seedApprovedWeek(ledger)
	invoices := &invoiceStoreStub{}
	payroll := newPayrollServiceForTest(ledger, newPayPeriodStoreStub(), invoices, &auditStub{})
	_, err := payroll.GenerateWeek(context.Background(), dto.GeneratePayrollRequest{PeriodStart: "2026-02-02"}, adminClaims())
	require.NoError(t, err)

	cache := newReportCacheStub()
	svc := newIntegrityServiceForTest(ledger, newPayPeriodStoreStub(), invoices, cache)

	first, err := svc.Report(context.Background(), "2026-02-02")
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)

	// Drift introduced after caching stays invisible until the entry expires.
	seedSession(ledger, "session-late", "tutor-1", models.SessionStatusApproved, time.Date(2026, 2, 6, 10, 0, 0, 0, time.UTC))

	second, err := svc.Report(context.Background(), "2026-02-02")
	require.NoError(t, err)
	require.Equal(t, 1, cache.hits)
	require.Equal(t, 1, cache.sets)
	require.True(t, second.Clean())
	require.Equal(t, first.PeriodStart, second.PeriodStart)
}
