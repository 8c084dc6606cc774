package repository

import (
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
)

// translateConstraint maps storage-level constraint failures onto domain
// errors so no pq-specific code leaks past the repository layer. The
// exclusion constraint on session_snapshots is the authoritative overlap
// guard; 23P01 is how a lost race surfaces.
func translateConstraint(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23P01": // exclusion_violation
			return appErrors.ErrOverlappingSession
		case "23505", "23514", "23503": // unique, check, foreign key
			return appErrors.Wrap(err, appErrors.ErrConstraintViolation.Code, appErrors.ErrConstraintViolation.Status, appErrors.ErrConstraintViolation.Message)
		}
	}
	return err
}
