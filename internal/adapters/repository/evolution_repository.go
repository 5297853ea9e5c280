package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

const evolutionColumns = `id, empresa_id, patient_id, author_id, created_at, type, title, description, vitals, alert`

// EvolutionRepository has no update path; the table also rejects UPDATE with a trigger.
type EvolutionRepository struct {
	store
}

var _ ports.EvolutionRepository = (*EvolutionRepository)(nil)

func NewEvolutionRepository(db *sql.DB, cb *gobreaker.CircuitBreaker) *EvolutionRepository {
	return &EvolutionRepository{store{db: db, cb: cb}}
}

func (r *EvolutionRepository) Create(ctx context.Context, rec domain.EvolutionRecord) error {
	vitals, err := marshalVitals(rec.Vitals)
	if err != nil {
		return err
	}
	return r.run(func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO evolutions (`+evolutionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rec.ID, rec.TenantID, rec.PatientID, rec.AuthorID, rec.CreatedAt,
			string(rec.Body.Type), rec.Body.Title, rec.Body.Description, vitals, rec.Alert,
		)
		return err
	})
}

func (r *EvolutionRepository) FindByID(ctx context.Context, id, tenantID string) (*domain.EvolutionRecord, error) {
	query := `SELECT ` + evolutionColumns + ` FROM evolutions WHERE id = $1`
	args := []any{id}
	if tenantID != "" {
		query += ` AND empresa_id = $2`
		args = append(args, tenantID)
	}

	var rec *domain.EvolutionRecord
	err := r.run(func() error {
		found, err := scanEvolution(r.db.QueryRowContext(ctx, query, args...))
		if err != nil {
			return err
		}
		rec = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *EvolutionRepository) List(ctx context.Context, filter domain.EvolutionFilter) ([]domain.EvolutionRecord, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.TenantID != "" {
		add("empresa_id = $%d", filter.TenantID)
	}
	if filter.PatientID != "" {
		add("patient_id = $%d", filter.PatientID)
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if filter.Alert != nil {
		add("alert = $%d", *filter.Alert)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var (
		records []domain.EvolutionRecord
		total   int
	)
	err := r.run(func() error {
		if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM evolutions`+clause, args...).Scan(&total); err != nil {
			return err
		}

		pageArgs := append(append([]any{}, args...), filter.Limit, filter.Offset)
		rows, err := r.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT %s FROM evolutions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
				evolutionColumns, clause, len(args)+1, len(args)+2),
			pageArgs...,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		records = make([]domain.EvolutionRecord, 0)
		for rows.Next() {
			rec, err := scanEvolution(rows)
			if err != nil {
				return err
			}
			records = append(records, *rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Delete is only reached through the superadmin override; the audit event commits with it.
func (r *EvolutionRepository) Delete(ctx context.Context, id, tenantID string, evt domain.AuditEvent) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM evolutions WHERE id = $1 AND empresa_id = $2`, id, tenantID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return appendOutbox(ctx, tx, evt)
	})
}

func scanEvolution(row rowScanner) (*domain.EvolutionRecord, error) {
	var (
		rec    domain.EvolutionRecord
		kind   string
		vitals []byte
	)
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.PatientID, &rec.AuthorID, &rec.CreatedAt,
		&kind, &rec.Body.Title, &rec.Body.Description, &vitals, &rec.Alert)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Body.Type = domain.EvolutionType(kind)
	rec.CreatedAt = rec.CreatedAt.UTC()
	if len(vitals) > 0 && string(vitals) != "null" {
		var v domain.Vitals
		if err := json.Unmarshal(vitals, &v); err != nil {
			return nil, fmt.Errorf("decode vitals of %s: %w", rec.ID, err)
		}
		rec.Vitals = &v
	}
	return &rec, nil
}

func marshalVitals(v *domain.Vitals) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal vitals: %w", err)
	}
	return b, nil
}
