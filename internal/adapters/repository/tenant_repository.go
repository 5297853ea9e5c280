package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

const tenantColumns = `id, name, display_code, active, plan, in_trial, trial_started_at, trial_ends_at, converted_at, created_at, updated_at`

type TenantRepository struct {
	store
}

var _ ports.TenantRepository = (*TenantRepository)(nil)

func NewTenantRepository(db *sql.DB, cb *gobreaker.CircuitBreaker) *TenantRepository {
	return &TenantRepository{store{db: db, cb: cb}}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var (
		t                                  domain.Tenant
		plan                               string
		trialStarted, trialEnds, converted sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &t.DisplayCode, &t.Active, &plan, &t.Trial.InTrial,
		&trialStarted, &trialEnds, &converted, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Plan = domain.Plan(plan)
	t.Trial.StartedAt = nullTime(trialStarted)
	t.Trial.EndsAt = nullTime(trialEnds)
	t.ConvertedAt = nullTime(converted)
	return &t, nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// FindByID is the single tenant read each authenticated request performs.
func (r *TenantRepository) FindByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var tenant *domain.Tenant
	err := r.run(func() error {
		t, err := scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM empresas WHERE id = $1`, id))
		if err != nil {
			return err
		}
		tenant = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

func (r *TenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	var tenants []domain.Tenant
	err := r.run(func() error {
		rows, err := r.db.QueryContext(ctx, `SELECT `+tenantColumns+` FROM empresas ORDER BY name`)
		if err != nil {
			return err
		}
		defer rows.Close()

		tenants = make([]domain.Tenant, 0)
		for rows.Next() {
			t, err := scanTenant(rows)
			if err != nil {
				return err
			}
			tenants = append(tenants, *t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// Mutate applies fn to the locked row. The update and the audit event commit together,
// so two racing admin actions serialize on the row lock.
func (r *TenantRepository) Mutate(ctx context.Context, id string, fn ports.TenantMutation) (*domain.Tenant, error) {
	var updated *domain.Tenant
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		t, err := scanTenant(tx.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM empresas WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		evt, err := fn(t)
		if err != nil {
			return err
		}
		t.UpdatedAt = evt.OccurredAt

		if _, err := tx.ExecContext(ctx, `
			UPDATE empresas
			SET active = $2, plan = $3, in_trial = $4, trial_started_at = $5,
			    trial_ends_at = $6, converted_at = $7, updated_at = $8
			WHERE id = $1`,
			t.ID, t.Active, string(t.Plan), t.Trial.InTrial,
			timeArg(t.Trial.StartedAt), timeArg(t.Trial.EndsAt), timeArg(t.ConvertedAt), t.UpdatedAt,
		); err != nil {
			return err
		}
		if err := appendOutbox(ctx, tx, evt); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the tenant after fn approves the locked row. Evolution records are
// deleted explicitly since patients restrict deletion; users and patients cascade.
func (r *TenantRepository) Delete(ctx context.Context, id string, fn ports.TenantMutation) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		t, err := scanTenant(tx.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM empresas WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		evt, err := fn(t)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM evolutions WHERE empresa_id = $1`, t.ID); err != nil {
			return err
		}

		// Same predicate as CanHardDelete, enforced by the statement itself.
		res, err := tx.ExecContext(ctx, `DELETE FROM empresas WHERE id = $1 AND active = false`, t.ID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrNotFound
		}
		return appendOutbox(ctx, tx, evt)
	})
}
