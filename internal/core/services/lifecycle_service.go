package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
	"github.com/prescrimed/tenant-access-service/internal/observability/metrics"
)

var tracer = otel.Tracer("github.com/prescrimed/tenant-access-service/internal/core/services")

// LifecycleService drives a tenant through trial, conversion, deactivation and deletion.
// Each transition is applied by the repository under a row lock together with its audit event.
type LifecycleService struct {
	tenants   ports.TenantRepository
	evaluator *PermissionEvaluator
	now       func() time.Time
}

var _ ports.LifecycleService = (*LifecycleService)(nil)

func NewLifecycleService(tenants ports.TenantRepository, evaluator *PermissionEvaluator, now func() time.Time) *LifecycleService {
	if now == nil {
		now = time.Now
	}
	if evaluator == nil {
		evaluator = NewPermissionEvaluator()
	}
	return &LifecycleService{tenants: tenants, evaluator: evaluator, now: now}
}

func (s *LifecycleService) List(ctx context.Context) ([]domain.Tenant, error) {
	return s.tenants.List(ctx)
}

func (s *LifecycleService) Get(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	t, err := s.tenants.FindByID(ctx, strings.TrimSpace(tenantID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTenantNotFound, tenantID)
	}
	return t, err
}

func (s *LifecycleService) StartTrial(ctx context.Context, actor domain.Principal, tenantID string, days int) (*domain.Tenant, error) {
	return s.transition(ctx, actor, tenantID, "start_trial", func(t *domain.Tenant, now time.Time) (map[string]string, error) {
		return map[string]string{"days": strconv.Itoa(days)}, t.StartTrial(now, days)
	})
}

func (s *LifecycleService) ExtendTrial(ctx context.Context, actor domain.Principal, tenantID string, days int) (*domain.Tenant, error) {
	return s.transition(ctx, actor, tenantID, "extend_trial", func(t *domain.Tenant, now time.Time) (map[string]string, error) {
		return map[string]string{"days": strconv.Itoa(days)}, t.ExtendTrial(now, days)
	})
}

func (s *LifecycleService) EndTrial(ctx context.Context, actor domain.Principal, tenantID string) (*domain.Tenant, error) {
	return s.transition(ctx, actor, tenantID, "end_trial", func(t *domain.Tenant, now time.Time) (map[string]string, error) {
		return nil, t.EndTrial(now)
	})
}

func (s *LifecycleService) ConvertTrial(ctx context.Context, actor domain.Principal, tenantID string, plan domain.Plan) (*domain.Tenant, error) {
	return s.transition(ctx, actor, tenantID, "convert_trial", func(t *domain.Tenant, now time.Time) (map[string]string, error) {
		return map[string]string{"plan": string(plan)}, t.ConvertTrial(now, plan)
	})
}

func (s *LifecycleService) Deactivate(ctx context.Context, actor domain.Principal, tenantID string) (*domain.Tenant, error) {
	return s.transition(ctx, actor, tenantID, "deactivate", func(t *domain.Tenant, _ time.Time) (map[string]string, error) {
		return nil, t.Deactivate()
	})
}

func (s *LifecycleService) Reactivate(ctx context.Context, actor domain.Principal, tenantID string) (*domain.Tenant, error) {
	return s.transition(ctx, actor, tenantID, "reactivate", func(t *domain.Tenant, _ time.Time) (map[string]string, error) {
		return nil, t.Reactivate()
	})
}

// HardDelete is the second step of tenant destruction: the tenant must already be
// inactive and the confirmation must match its display code.
func (s *LifecycleService) HardDelete(ctx context.Context, actor domain.Principal, tenantID, confirmation string) error {
	ctx, span := tracer.Start(ctx, "lifecycle.hard_delete")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if err := s.evaluator.RequireRole(actor, domain.RoleSuperAdmin); err != nil {
		metrics.ObserveLifecycle("hard_delete", "denied")
		return err
	}

	err := s.tenants.Delete(ctx, tenantID, func(t *domain.Tenant) (domain.AuditEvent, error) {
		if err := t.CanHardDelete(confirmation); err != nil {
			return domain.AuditEvent{}, err
		}
		return s.auditEvent(actor, t, domain.AuditTenantDeleted, "hard_delete", map[string]string{"name": t.Name}), nil
	})
	if err != nil {
		err = s.classify(tenantID, err)
		metrics.ObserveLifecycle("hard_delete", resultLabel(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "hard delete failed")
		return err
	}

	metrics.ObserveLifecycle("hard_delete", "ok")
	log.Printf("lifecycle: tenant %s hard-deleted by %s", tenantID, actor.UserID)
	return nil
}

type transitionFunc func(t *domain.Tenant, now time.Time) (map[string]string, error)

func (s *LifecycleService) transition(ctx context.Context, actor domain.Principal, tenantID, action string, fn transitionFunc) (*domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "lifecycle."+action)
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if err := s.evaluator.RequireRole(actor, domain.RoleSuperAdmin); err != nil {
		metrics.ObserveLifecycle(action, "denied")
		return nil, err
	}

	updated, err := s.tenants.Mutate(ctx, tenantID, func(t *domain.Tenant) (domain.AuditEvent, error) {
		now := s.now()
		from := t.State(now)
		details, err := fn(t, now)
		if err != nil {
			return domain.AuditEvent{}, err
		}
		if details == nil {
			details = map[string]string{}
		}
		details["from"] = string(from)
		details["to"] = string(t.State(now))
		return s.auditEvent(actor, t, domain.AuditTenantLifecycle, action, details), nil
	})
	if err != nil {
		err = s.classify(tenantID, err)
		metrics.ObserveLifecycle(action, resultLabel(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, action+" failed")
		return nil, err
	}

	metrics.ObserveLifecycle(action, "ok")
	log.Printf("lifecycle: tenant %s %s by %s -> %s", tenantID, action, actor.UserID, updated.State(s.now()))
	return updated, nil
}

func (s *LifecycleService) auditEvent(actor domain.Principal, t *domain.Tenant, eventType, action string, details map[string]string) domain.AuditEvent {
	if details == nil {
		details = map[string]string{}
	}
	details["action"] = action
	return domain.AuditEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		TenantID:     t.ID,
		ActorID:      actor.UserID,
		ActorRole:    actor.Role,
		ResourceType: "tenant",
		ResourceID:   t.ID,
		OccurredAt:   s.now().UTC(),
		Details:      details,
	}
}

func (s *LifecycleService) classify(tenantID string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrTenantNotFound, tenantID)
	}
	return err
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidLifecycleTransition):
		return "invalid"
	case errors.Is(err, domain.ErrTenantNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAccessDenied):
		return "denied"
	}
	return "error"
}
