package ports

import (
	"context"
	"time"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// TenantMutation applies a lifecycle transition to a locked tenant row and
// returns the audit event to append in the same transaction.
type TenantMutation func(t *domain.Tenant) (domain.AuditEvent, error)

type TenantRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Tenant, error)
	List(ctx context.Context) ([]domain.Tenant, error)
	// Mutate locks the row, runs fn, and persists the result atomically.
	Mutate(ctx context.Context, id string, fn TenantMutation) (*domain.Tenant, error)
	// Delete locks the row, runs fn as a guard, and removes the tenant with its users.
	Delete(ctx context.Context, id string, fn TenantMutation) error
}

type PatientRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Patient, error)
	// List returns patients of tenantID, or of every tenant when tenantID is empty.
	List(ctx context.Context, tenantID string) ([]domain.Patient, error)
}

type EvolutionRepository interface {
	Create(ctx context.Context, rec domain.EvolutionRecord) error
	// FindByID scopes the lookup to tenantID unless it is empty.
	FindByID(ctx context.Context, id, tenantID string) (*domain.EvolutionRecord, error)
	List(ctx context.Context, filter domain.EvolutionFilter) ([]domain.EvolutionRecord, int, error)
	// Delete removes the record and appends the audit event atomically.
	Delete(ctx context.Context, id, tenantID string, evt domain.AuditEvent) error
}

// RefreshTokenStore tracks the refresh credentials that may still be exchanged.
type RefreshTokenStore interface {
	Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error
	// Consume atomically removes tokenID and returns the user it was issued to.
	Consume(ctx context.Context, tokenID string) (string, error)
	Revoke(ctx context.Context, tokenID string) error
}
