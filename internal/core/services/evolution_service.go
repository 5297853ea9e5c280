package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
	"github.com/prescrimed/tenant-access-service/internal/observability/metrics"
)

const (
	defaultEvolutionPageSize = 50
	maxEvolutionPageSize     = 200
)

// EvolutionService guards clinical evolution records: create-only for holders of the
// evolution module, never updated, removed only through the superadmin override.
type EvolutionService struct {
	records   ports.EvolutionRepository
	patients  ports.PatientRepository
	evaluator *PermissionEvaluator
	now       func() time.Time
}

var _ ports.EvolutionService = (*EvolutionService)(nil)

func NewEvolutionService(records ports.EvolutionRepository, patients ports.PatientRepository, evaluator *PermissionEvaluator, now func() time.Time) *EvolutionService {
	if now == nil {
		now = time.Now
	}
	if evaluator == nil {
		evaluator = NewPermissionEvaluator()
	}
	return &EvolutionService{records: records, patients: patients, evaluator: evaluator, now: now}
}

func (s *EvolutionService) Create(ctx context.Context, p domain.Principal, scope domain.Scope, in ports.CreateEvolutionInput) (*domain.EvolutionRecord, error) {
	if err := s.evaluator.Allow(p, domain.ModuleEvolution); err != nil {
		return nil, err
	}
	if scope.AllTenants || scope.TenantID == "" {
		return nil, fmt.Errorf("%w: select a tenant before recording an evolution", domain.ErrTenantContextRequired)
	}

	patientID := strings.TrimSpace(in.PatientID)
	if patientID == "" {
		return nil, fmt.Errorf("%w: patient_id is required", domain.ErrInvalidInput)
	}
	kind, err := domain.ParseEvolutionType(string(in.Body.Type))
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(in.Body.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}

	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: patient %s", domain.ErrNotFound, patientID)
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.TenantID != scope.TenantID {
		return nil, fmt.Errorf("%w: patient belongs to another tenant", domain.ErrTenantMismatch)
	}

	rec := domain.EvolutionRecord{
		ID:        uuid.NewString(),
		TenantID:  scope.TenantID,
		PatientID: patient.ID,
		AuthorID:  p.UserID,
		CreatedAt: s.now().UTC(),
		Body: domain.EvolutionBody{
			Type:        kind,
			Title:       strings.TrimSpace(in.Body.Title),
			Description: description,
		},
		Vitals: in.Vitals,
		Alert:  in.Alert,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create evolution: %w", err)
	}
	return &rec, nil
}

func (s *EvolutionService) Get(ctx context.Context, p domain.Principal, scope domain.Scope, id string) (*domain.EvolutionRecord, error) {
	if err := s.evaluator.Allow(p, domain.ModuleEvolution); err != nil {
		return nil, err
	}
	return s.records.FindByID(ctx, strings.TrimSpace(id), scope.TenantFilter())
}

func (s *EvolutionService) List(ctx context.Context, p domain.Principal, scope domain.Scope, filter domain.EvolutionFilter) ([]domain.EvolutionRecord, int, error) {
	if err := s.evaluator.Allow(p, domain.ModuleEvolution); err != nil {
		return nil, 0, err
	}
	// The scope always wins over whatever tenant the caller put in the filter.
	filter.TenantID = scope.TenantFilter()
	if filter.Limit <= 0 {
		filter.Limit = defaultEvolutionPageSize
	}
	if filter.Limit > maxEvolutionPageSize {
		filter.Limit = maxEvolutionPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.records.List(ctx, filter)
}

// Update always fails: evolution records have no mutable state, whoever asks.
func (s *EvolutionService) Update(_ context.Context, _ domain.Principal, _ domain.Scope, id string) error {
	return fmt.Errorf("%w: evolution %s cannot be modified", domain.ErrHistoryImmutable, id)
}

// Delete is the superadmin override. It needs an explicit tenant and is audited
// in the same transaction as the removal.
func (s *EvolutionService) Delete(ctx context.Context, p domain.Principal, scope domain.Scope, id string) error {
	if err := s.evaluator.RequireRole(p, domain.RoleSuperAdmin); err != nil {
		return err
	}
	if scope.AllTenants || scope.TenantID == "" {
		return fmt.Errorf("%w: select a tenant before deleting an evolution", domain.ErrTenantContextRequired)
	}

	id = strings.TrimSpace(id)
	rec, err := s.records.FindByID(ctx, id, scope.TenantID)
	if err != nil {
		return err
	}

	evt := domain.AuditEvent{
		ID:           uuid.NewString(),
		Type:         domain.AuditEvolutionDeleteOverride,
		TenantID:     rec.TenantID,
		ActorID:      p.UserID,
		ActorRole:    p.Role,
		ResourceType: "evolution",
		ResourceID:   rec.ID,
		OccurredAt:   s.now().UTC(),
		Details: map[string]string{
			"patient_id": rec.PatientID,
			"author_id":  rec.AuthorID,
			"created_at": rec.CreatedAt.Format(time.RFC3339),
		},
	}
	if err := s.records.Delete(ctx, rec.ID, rec.TenantID, evt); err != nil {
		return fmt.Errorf("delete evolution: %w", err)
	}

	metrics.ObserveEvolutionOverride()
	log.Printf("audit: evolution %s of tenant %s deleted by superadmin %s", rec.ID, rec.TenantID, p.UserID)
	return nil
}
