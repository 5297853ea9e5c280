package services

import (
	"fmt"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

// PermissionEvaluator is the single entry point for module and role checks.
// Denials carry no hint about which modules exist.
type PermissionEvaluator struct{}

func NewPermissionEvaluator() *PermissionEvaluator {
	return &PermissionEvaluator{}
}

func (e *PermissionEvaluator) Allow(p domain.Principal, module domain.Module) error {
	if p.Role.HasFullAccess() {
		return nil
	}
	if p.Permissions.Has(module) {
		return nil
	}
	return fmt.Errorf("%w", domain.ErrAccessDenied)
}

// RequireRole gates role-restricted destructive operations by exact role.
func (e *PermissionEvaluator) RequireRole(p domain.Principal, role domain.Role) error {
	if p.Role != role {
		return fmt.Errorf("%w", domain.ErrAccessDenied)
	}
	return nil
}
