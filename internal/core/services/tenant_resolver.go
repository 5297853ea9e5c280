package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

// TenantResolver decides which tenant a request operates against and applies
// the lifecycle access gate to it. It reads the tenant row at most once.
type TenantResolver struct {
	tenants ports.TenantRepository
	now     func() time.Time
}

func NewTenantResolver(tenants ports.TenantRepository, now func() time.Time) *TenantResolver {
	if now == nil {
		now = time.Now
	}
	return &TenantResolver{tenants: tenants, now: now}
}

// Resolve returns the effective scope. For anyone but a superadmin the selector is ignored.
// The returned tenant is nil only in all-tenants mode.
func (r *TenantResolver) Resolve(ctx context.Context, p domain.Principal, selector string) (domain.Scope, *domain.Tenant, error) {
	tenantID := p.TenantID
	if p.Role.IsSuperAdmin() {
		selector = strings.TrimSpace(selector)
		if selector == "" {
			return domain.Scope{AllTenants: true}, nil, nil
		}
		if _, err := uuid.Parse(selector); err != nil {
			return domain.Scope{}, nil, fmt.Errorf("%w: malformed selector", domain.ErrTenantNotFound)
		}
		tenantID = selector
	}

	t, err := r.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Scope{}, nil, fmt.Errorf("%w: %s", domain.ErrTenantNotFound, tenantID)
		}
		return domain.Scope{}, nil, fmt.Errorf("load tenant: %w", err)
	}
	return domain.Scope{TenantID: t.ID}, t, nil
}

// Gate rejects requests against blocked tenants. All-tenants mode has no row to gate.
func (r *TenantResolver) Gate(t *domain.Tenant) error {
	if t == nil {
		return nil
	}
	return t.CheckAccess(r.now())
}

// ResolveAndGate runs Resolve followed by Gate.
func (r *TenantResolver) ResolveAndGate(ctx context.Context, p domain.Principal, selector string) (domain.Scope, *domain.Tenant, error) {
	scope, t, err := r.Resolve(ctx, p, selector)
	if err != nil {
		return domain.Scope{}, nil, err
	}
	if err := r.Gate(t); err != nil {
		return domain.Scope{}, nil, err
	}
	return scope, t, nil
}
