package services

import (
	"context"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

type PatientService struct {
	patients  ports.PatientRepository
	evaluator *PermissionEvaluator
}

var _ ports.PatientService = (*PatientService)(nil)

func NewPatientService(patients ports.PatientRepository, evaluator *PermissionEvaluator) *PatientService {
	if evaluator == nil {
		evaluator = NewPermissionEvaluator()
	}
	return &PatientService{patients: patients, evaluator: evaluator}
}

// List returns the patients visible in scope; all-tenants scope aggregates every tenant.
func (s *PatientService) List(ctx context.Context, p domain.Principal, scope domain.Scope) ([]domain.Patient, error) {
	if err := s.evaluator.Allow(p, domain.ModulePatients); err != nil {
		return nil, err
	}
	return s.patients.List(ctx, scope.TenantFilter())
}
