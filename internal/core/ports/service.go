package ports

import (
	"context"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (domain.TokenPair, *domain.User, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, *domain.User, error)
	Logout(ctx context.Context, userID, refreshToken string) error
}

type LifecycleService interface {
	List(ctx context.Context) ([]domain.Tenant, error)
	Get(ctx context.Context, tenantID string) (*domain.Tenant, error)
	StartTrial(ctx context.Context, actor domain.Principal, tenantID string, days int) (*domain.Tenant, error)
	ExtendTrial(ctx context.Context, actor domain.Principal, tenantID string, days int) (*domain.Tenant, error)
	EndTrial(ctx context.Context, actor domain.Principal, tenantID string) (*domain.Tenant, error)
	ConvertTrial(ctx context.Context, actor domain.Principal, tenantID string, plan domain.Plan) (*domain.Tenant, error)
	Deactivate(ctx context.Context, actor domain.Principal, tenantID string) (*domain.Tenant, error)
	Reactivate(ctx context.Context, actor domain.Principal, tenantID string) (*domain.Tenant, error)
	HardDelete(ctx context.Context, actor domain.Principal, tenantID, confirmation string) error
}

type CreateEvolutionInput struct {
	PatientID string
	Body      domain.EvolutionBody
	Vitals    *domain.Vitals
	Alert     bool
}

type EvolutionService interface {
	Create(ctx context.Context, p domain.Principal, scope domain.Scope, in CreateEvolutionInput) (*domain.EvolutionRecord, error)
	Get(ctx context.Context, p domain.Principal, scope domain.Scope, id string) (*domain.EvolutionRecord, error)
	List(ctx context.Context, p domain.Principal, scope domain.Scope, filter domain.EvolutionFilter) ([]domain.EvolutionRecord, int, error)
	Update(ctx context.Context, p domain.Principal, scope domain.Scope, id string) error
	Delete(ctx context.Context, p domain.Principal, scope domain.Scope, id string) error
}

type PatientService interface {
	List(ctx context.Context, p domain.Principal, scope domain.Scope) ([]domain.Patient, error)
}
