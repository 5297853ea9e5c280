package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sony/gobreaker"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

type PatientRepository struct {
	store
}

var _ ports.PatientRepository = (*PatientRepository)(nil)

func NewPatientRepository(db *sql.DB, cb *gobreaker.CircuitBreaker) *PatientRepository {
	return &PatientRepository{store{db: db, cb: cb}}
}

func (r *PatientRepository) FindByID(ctx context.Context, id string) (*domain.Patient, error) {
	var p domain.Patient
	err := r.run(func() error {
		err := r.db.QueryRowContext(ctx,
			`SELECT id, empresa_id, name FROM patients WHERE id = $1`, id,
		).Scan(&p.ID, &p.TenantID, &p.Name)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PatientRepository) List(ctx context.Context, tenantID string) ([]domain.Patient, error) {
	query := `SELECT id, empresa_id, name FROM patients ORDER BY name`
	args := []any{}
	if tenantID != "" {
		query = `SELECT id, empresa_id, name FROM patients WHERE empresa_id = $1 ORDER BY name`
		args = append(args, tenantID)
	}

	var patients []domain.Patient
	err := r.run(func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		patients = make([]domain.Patient, 0)
		for rows.Next() {
			var p domain.Patient
			if err := rows.Scan(&p.ID, &p.TenantID, &p.Name); err != nil {
				return err
			}
			patients = append(patients, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return patients, nil
}
