package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-ops-api/internal/dto"
	"github.com/noah-isme/tutor-ops-api/internal/models"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
)

type payPeriodStoreStub struct {
	locks       map[string]*models.PayPeriodLock
	adjustments map[string]*models.Adjustment
	nextID      int
}

func newPayPeriodStoreStub() *payPeriodStoreStub {
	return &payPeriodStoreStub{
		locks:       make(map[string]*models.PayPeriodLock),
		adjustments: make(map[string]*models.Adjustment),
	}
}

func (p *payPeriodStoreStub) IsLocked(ctx context.Context, periodStart time.Time) (bool, error) {
	_, ok := p.locks[periodStart.Format(dto.PeriodDateLayout)]
	return ok, nil
}

func (p *payPeriodStoreStub) Lock(ctx context.Context, lock *models.PayPeriodLock) error {
	key := lock.PeriodStart.Format(dto.PeriodDateLayout)
	if _, ok := p.locks[key]; !ok {
		p.locks[key] = lock
	}
	return nil
}

func (p *payPeriodStoreStub) ListLocks(ctx context.Context) ([]models.PayPeriodLock, error) {
	result := []models.PayPeriodLock{}
	for _, lock := range p.locks {
		result = append(result, *lock)
	}
	return result, nil
}

func (p *payPeriodStoreStub) CreateAdjustment(ctx context.Context, adjustment *models.Adjustment) error {
	p.nextID++
	if adjustment.ID == "" {
		adjustment.ID = fmt.Sprintf("adjustment-%d", p.nextID)
	}
	p.adjustments[adjustment.ID] = adjustment
	return nil
}

func (p *payPeriodStoreStub) FindAdjustment(ctx context.Context, id string) (*models.Adjustment, error) {
	adjustment, ok := p.adjustments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *adjustment
	return &copy, nil
}

func (p *payPeriodStoreStub) DeleteAdjustment(ctx context.Context, id string) error {
	if _, ok := p.adjustments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(p.adjustments, id)
	return nil
}

func (p *payPeriodStoreStub) ListAdjustments(ctx context.Context, periodStart time.Time, tutorID string) ([]models.Adjustment, error) {
	result := []models.Adjustment{}
	for _, adjustment := range p.adjustments {
		if !adjustment.PeriodStart.Equal(periodStart) {
			continue
		}
		if tutorID != "" && adjustment.TutorID != tutorID {
			continue
		}
		result = append(result, *adjustment)
	}
	return result, nil
}

type tutorStub struct {
	tutors map[string]models.Tutor
}

func newTutorStub(tutors ...models.Tutor) *tutorStub {
	stub := &tutorStub{tutors: make(map[string]models.Tutor)}
	for _, tutor := range tutors {
		stub.tutors[tutor.ID] = tutor
	}
	return stub
}

func (t *tutorStub) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	tutor, ok := t.tutors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tutor, nil
}

func (t *tutorStub) FindByIDs(ctx context.Context, ids []string) (map[string]models.Tutor, error) {
	result := make(map[string]models.Tutor)
	for _, id := range ids {
		if tutor, ok := t.tutors[id]; ok {
			result[id] = tutor
		}
	}
	return result, nil
}

func TestPayPeriodServiceLock(t *testing.T) {
	ledger := newLedgerStub()
	periods := newPayPeriodStoreStub()
	audit := &auditStub{}
	svc := NewPayPeriodService(periods, ledger, newTutorStub(), audit, nil, nil)
	admin := adminClaims()

	// A SUBMITTED session in range blocks the lock.
	seedSession(ledger, "session-1", "tutor-1", models.SessionStatusSubmitted, time.Date(2026, 2, 4, 9, 0, 0, 0, time.UTC))
	_, err := svc.Lock(context.Background(), dto.LockPeriodRequest{PeriodStart: "2026-02-02"}, admin)
	require.ErrorIs(t, err, appErrors.ErrPendingSessions)

	ledger.snapshots["session-1"].Status = models.SessionStatusApproved
	lock, err := svc.Lock(context.Background(), dto.LockPeriodRequest{PeriodStart: "2026-02-02"}, admin)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), lock.PeriodStart)
	require.Len(t, audit.logs, 1)

	// Locking again is a no-op success; the flag is monotonic.
	_, err = svc.Lock(context.Background(), dto.LockPeriodRequest{PeriodStart: "2026-02-02"}, admin)
	require.NoError(t, err)
}

func TestPayPeriodServiceLockCanonicalizesToMonday(t *testing.T) {
	svc := NewPayPeriodService(newPayPeriodStoreStub(), newLedgerStub(), newTutorStub(), &auditStub{}, nil, nil)

	// A Thursday resolves to its week's Monday.
	lock, err := svc.Lock(context.Background(), dto.LockPeriodRequest{PeriodStart: "2026-02-05"}, adminClaims())
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), lock.PeriodStart)
}

func TestPayPeriodServiceAdjustments(t *testing.T) {
	periods := newPayPeriodStoreStub()
	tutors := newTutorStub(models.Tutor{ID: "tutor-1", FullName: "Ani Wijaya", DefaultHourlyRateCents: 30000})
	svc := NewPayPeriodService(periods, newLedgerStub(), tutors, &auditStub{}, nil, nil)
	admin := adminClaims()

	adjustment, err := svc.CreateAdjustment(context.Background(), dto.CreateAdjustmentRequest{
		TutorID:     "tutor-1",
		PeriodStart: "2026-02-02",
		Type:        "BONUS",
		AmountCents: 15000,
		Reason:      "referral bonus",
	}, admin)
	require.NoError(t, err)
	require.Equal(t, models.AdjustmentTypeBonus, adjustment.Type)
	require.Equal(t, int64(15000), adjustment.SignedAmountCents())

	_, err = svc.CreateAdjustment(context.Background(), dto.CreateAdjustmentRequest{
		TutorID:     "missing",
		PeriodStart: "2026-02-02",
		Type:        "PENALTY",
		AmountCents: 5000,
		Reason:      "late cancellation",
	}, admin)
	require.Error(t, err)

	require.NoError(t, svc.DeleteAdjustment(context.Background(), adjustment.ID, admin))
	err = svc.DeleteAdjustment(context.Background(), adjustment.ID, admin)
	require.ErrorIs(t, err, appErrors.ErrAdjustmentNotFound)
}

func TestPayPeriodServiceAdjustmentsBlockedAfterLock(t *testing.T) {
	periods := newPayPeriodStoreStub()
	tutors := newTutorStub(models.Tutor{ID: "tutor-1", DefaultHourlyRateCents: 30000})
	svc := NewPayPeriodService(periods, newLedgerStub(), tutors, &auditStub{}, nil, nil)
	admin := adminClaims()

	kept, err := svc.CreateAdjustment(context.Background(), dto.CreateAdjustmentRequest{
		TutorID:     "tutor-1",
		PeriodStart: "2026-02-02",
		Type:        "BONUS",
		AmountCents: 15000,
		Reason:      "referral bonus",
	}, admin)
	require.NoError(t, err)

	_, err = svc.Lock(context.Background(), dto.LockPeriodRequest{PeriodStart: "2026-02-02"}, admin)
	require.NoError(t, err)

	_, err = svc.CreateAdjustment(context.Background(), dto.CreateAdjustmentRequest{
		TutorID:     "tutor-1",
		PeriodStart: "2026-02-02",
		Type:        "PENALTY",
		AmountCents: 2000,
		Reason:      "no-show",
	}, admin)
	require.ErrorIs(t, err, appErrors.ErrPayPeriodLocked)

	err = svc.DeleteAdjustment(context.Background(), kept.ID, admin)
	require.ErrorIs(t, err, appErrors.ErrPayPeriodLocked)
}
