package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-ops-api/internal/models"
)

// TutorRepository reads the tutor roster; rates feed payroll settlement.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository constructs the repository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// FindByID loads one tutor.
func (r *TutorRepository) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	const query = `SELECT * FROM tutors WHERE id = $1`
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, query, id); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// FindByIDs loads tutors keyed by id.
func (r *TutorRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Tutor, error) {
	if len(ids) == 0 {
		return map[string]models.Tutor{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM tutors WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("expand tutor ids: %w", err)
	}
	query = r.db.Rebind(query)

	var tutors []models.Tutor
	if err := r.db.SelectContext(ctx, &tutors, query, args...); err != nil {
		return nil, fmt.Errorf("list tutors: %w", err)
	}
	result := make(map[string]models.Tutor, len(tutors))
	for _, tutor := range tutors {
		result[tutor.ID] = tutor
	}
	return result, nil
}
